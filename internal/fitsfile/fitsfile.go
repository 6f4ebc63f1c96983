// Package fitsfile wraps github.com/astrogo/fitsio with the pieces misty
// needs around it: a size check that runs before fitsio sees untrusted bytes,
// conversion of table columns into plain slices, and card helpers that keep
// in-memory values identical to what a later read returns.
package fitsfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// ErrMalformed reports bytes that do not form a readable FITS file.
var ErrMalformed = errors.New("fitsfile: malformed FITS data")

// ErrUnsupportedColumn reports a table column that has no slice form.
var ErrUnsupportedColumn = errors.New("fitsfile: unsupported column")

// ReadFile loads every HDU of the FITS file at path.
func ReadFile(path string) ([]fitsio.HDU, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses every HDU held in data. Declared sizes are checked against
// len(data) first; anything fitsio would still choke on is returned as
// ErrMalformed rather than a panic.
func Decode(data []byte) (hdus []fitsio.HDU, err error) {
	end, err := checkLayout(data)
	if err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			hdus, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	f, err := fitsio.Open(bytes.NewReader(data[:end]))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer f.Close()
	return f.HDUs(), nil
}

// Encode writes hdus to w in order. The first HDU must be the primary.
func Encode(w io.Writer, hdus []fitsio.HDU) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fitsfile: encode: %v", r)
		}
	}()

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	for _, hdu := range hdus {
		if err := f.Write(hdu); err != nil {
			return err
		}
	}
	return f.Close()
}

// NewPrimary returns a data-less primary HDU carrying cards.
func NewPrimary(cards []fitsio.Card) (fitsio.HDU, error) {
	hdr := fitsio.NewHeader(nil, fitsio.IMAGE_HDU, 8, nil)
	if err := AppendCards(hdr, cards); err != nil {
		return nil, err
	}
	return fitsio.NewPrimaryHDU(hdr)
}

// AppendCards adds cards to hdr. String values are quoted the way FITS
// expects so an apostrophe survives a round trip.
func AppendCards(hdr *fitsio.Header, cards []fitsio.Card) error {
	for _, c := range cards {
		if s, ok := c.Value.(string); ok {
			c.Value = strings.ReplaceAll(s, "'", "''")
		}
		if err := hdr.Append(c); err != nil {
			return err
		}
	}
	return nil
}

// CardFloat rounds v to the precision a header card stores.
func CardFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(fmt.Sprintf("%#G", v), 64)
	if err != nil {
		return v
	}
	return r
}

// FixedString returns a value fitsio writes verbatim into a character column
// of the given width, NUL padded.
func FixedString(s string, width int) any {
	arr := reflect.New(reflect.ArrayOf(width, reflect.TypeOf(byte(0))))
	reflect.Copy(arr.Elem(), reflect.ValueOf([]byte(s)))
	return arr.Interface()
}

// StringWidth parses the width of a character column format such as "50A".
func StringWidth(format string) (int, bool) {
	f := strings.ToUpper(strings.TrimSpace(format))
	if !strings.HasSuffix(f, "A") {
		return 0, false
	}
	if f == "A" {
		return 1, true
	}
	n, err := strconv.Atoi(strings.TrimSuffix(f, "A"))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

var structural = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "EXTEND": true,
	"XTENSION": true, "PCOUNT": true, "GCOUNT": true, "TFIELDS": true,
	"THEAP": true, "EXTNAME": true, "END": true,
}

var columnKeys = []string{"TTYPE", "TFORM", "TUNIT", "TSCAL", "TZERO", "TBCOL", "TNULL", "TDISP", "TDIM"}

// UserCards returns the keyword cards of hdr that are not produced by the
// format itself, in order. Commentary cards are dropped.
func UserCards(hdr *fitsio.Header) []fitsio.Card {
	var out []fitsio.Card
	for _, key := range hdr.Keys() {
		if isStructural(key) {
			continue
		}
		out = append(out, *hdr.Get(key))
	}
	return out
}

func isStructural(name string) bool {
	key := strings.ToUpper(name)
	if structural[key] {
		return true
	}
	if rest, ok := strings.CutPrefix(key, "NAXIS"); ok {
		return isIndex(rest)
	}
	for _, p := range columnKeys {
		if rest, ok := strings.CutPrefix(key, p); ok && isIndex(rest) {
			return true
		}
	}
	return false
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// ReadColumns returns the data of every column of t. Numeric scalar columns
// become []float64 and character columns []string with trailing NULs and
// blanks removed.
func ReadColumns(t *fitsio.Table) (cols []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			cols, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	n := int(t.NumRows())
	cols = make([]any, t.NumCols())
	for i, c := range t.Cols() {
		switch kind := c.Type().Kind(); {
		case kind == reflect.String:
			cols[i] = make([]string, 0, n)
		case isNumeric(kind):
			cols[i] = make([]float64, 0, n)
		default:
			return nil, fmt.Errorf("%w: %s has format %s", ErrUnsupportedColumn, c.Name, c.Format)
		}
	}

	rows, err := t.Read(0, t.NumRows())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	defer rows.Close()

	row := make(map[string]any, len(cols))
	for rows.Next() {
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		for i, c := range t.Cols() {
			v := reflect.ValueOf(row[c.Name])
			switch d := cols[i].(type) {
			case []string:
				cols[i] = append(d, strings.TrimRight(v.String(), "\x00 "))
			case []float64:
				cols[i] = append(d, toFloat(v))
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return cols, nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	}
	return math.NaN()
}

// ErrInvalidCard reports a card that cannot be written as FITS.
var ErrInvalidCard = errors.New("fitsfile: invalid card")

// ValidateCard reports whether c can be written. Structural keywords are
// reserved; strings must be printable ASCII and reals finite.
func ValidateCard(c fitsio.Card) error {
	if c.Name == "" || isStructural(c.Name) {
		return fmt.Errorf("%w: keyword %q is reserved", ErrInvalidCard, c.Name)
	}
	if !printable(c.Name) || strings.Contains(c.Name, "=") {
		return fmt.Errorf("%w: keyword %q", ErrInvalidCard, c.Name)
	}
	if len(c.Name) > 8 && len("HIERARCH ")+len(c.Name)+2+20 > cardSize {
		return fmt.Errorf("%w: keyword %q is too long", ErrInvalidCard, c.Name)
	}
	switch v := c.Value.(type) {
	case bool, int, int64:
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s: non-finite real %v", ErrInvalidCard, c.Name, v)
		}
	case string:
		if !printable(v) {
			return fmt.Errorf("%w: %s: non-ASCII string %q", ErrInvalidCard, c.Name, v)
		}
	default:
		return fmt.Errorf("%w: %s: unsupported value type %T", ErrInvalidCard, c.Name, c.Value)
	}
	return nil
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
