package spectrum

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/astrogo/fitsio"

	"misty/internal/fitsfile"
)

// DefaultFilename is the product path used when none is given.
const DefaultFilename = "spectrum.fits"

// WriteContainer serializes c to path, replacing any existing file. The
// container is encoded in memory first so an unencodable container leaves the
// previous file untouched; the file itself is truncated and rewritten in place.
func WriteContainer(c *Container, path string) error {
	if err := requireContainer(c); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		path = DefaultFilename
	}

	hdus := make([]fitsio.HDU, 0, len(c.sections))
	for _, s := range c.sections {
		hdu, err := s.encode()
		if err != nil {
			return fmt.Errorf("%w: encode section %q: %w", ErrInvalidArgument, s.name, err)
		}
		hdus = append(hdus, hdu)
	}
	var buf bytes.Buffer
	if err := fitsfile.Encode(&buf, hdus); err != nil {
		return fmt.Errorf("%w: encode container: %w", ErrInvalidArgument, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return nil
}

func (s section) encode() (fitsio.HDU, error) {
	if s.table == nil {
		return fitsfile.NewPrimary(s.header.cards)
	}

	cols := make([]fitsio.Column, len(s.table.columns))
	widths := make([]int, len(cols))
	for i, c := range s.table.columns {
		cols[i] = fitsio.Column{Name: c.Name, Format: c.Format, Unit: c.Unit, Bscale: 1}
		if _, ok := c.Data.([]string); ok {
			w, ok := fitsfile.StringWidth(c.Format)
			if !ok {
				return nil, fmt.Errorf("column %s: format %q is not a character format", c.Name, c.Format)
			}
			widths[i] = w
		}
	}
	tbl, err := fitsio.NewTable(s.name, cols, fitsio.BINARY_TBL)
	if err != nil {
		return nil, err
	}
	if err := fitsfile.AppendCards(tbl.Header(), s.header.cards); err != nil {
		return nil, err
	}

	row := make([]any, len(cols))
	for r := 0; r < s.table.rows; r++ {
		for i, c := range s.table.columns {
			switch d := c.Data.(type) {
			case []float64:
				v := d[r]
				row[i] = &v
			case []string:
				if len(d[r]) > widths[i] {
					return nil, fmt.Errorf("column %s row %d: %q exceeds %d characters", c.Name, r, d[r], widths[i])
				}
				row[i] = fitsfile.FixedString(d[r], widths[i])
			}
		}
		if err := tbl.Write(row...); err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
	}
	return tbl, nil
}

// ReadContainer loads a product previously written by WriteContainer.
func ReadContainer(path string) (*Container, error) {
	hdus, err := fitsfile.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	if len(hdus) == 0 || hdus[0].Type() != fitsio.IMAGE_HDU {
		return nil, fmt.Errorf("%w: %s has no primary header", ErrIO, path)
	}

	c := &Container{sections: make([]section, 0, len(hdus))}
	for i, hdu := range hdus {
		s, ok, err := decodeSection(i, hdu)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %w", ErrIO, path, err)
		}
		if ok {
			c.append(s)
		}
	}
	return c, nil
}

// decodeSection converts hdu. Image extensions other than the primary are
// skipped so foreign files can still be inspected.
func decodeSection(i int, hdu fitsio.HDU) (section, bool, error) {
	hdr := Header{cards: fitsfile.UserCards(hdu.Header())}
	if i == 0 {
		return section{header: hdr}, true, nil
	}
	t, ok := hdu.(*fitsio.Table)
	if !ok || hdu.Type() != fitsio.BINARY_TBL {
		return section{}, false, nil
	}

	data, err := fitsfile.ReadColumns(t)
	if err != nil {
		return section{}, false, fmt.Errorf("table %q: %w", t.Name(), err)
	}
	cols := make([]Column, len(data))
	for j, c := range t.Cols() {
		cols[j] = Column{Name: c.Name, Format: c.Format, Unit: c.Unit, Data: data[j]}
	}
	tbl, err := newTable(cols)
	if err != nil {
		return section{}, false, fmt.Errorf("table %q: %w", t.Name(), err)
	}
	return section{name: t.Name(), header: hdr, table: tbl}, true, nil
}
