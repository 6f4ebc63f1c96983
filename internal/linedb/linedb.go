package linedb

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed lines.txt
var bundledLines string

var (
	// ErrUnknownLine reports a term that matches no line in the database.
	ErrUnknownLine = errors.New("unknown spectral line")
	// ErrFormat reports a malformed line list.
	ErrFormat = errors.New("malformed line list")
)

// Line is one atomic transition.
type Line struct {
	Element    string
	IonState   string
	Wavelength float64 // rest wavelength in Angstrom
	Gamma      float64 // damping constant in s^-1
	FValue     float64 // absorption oscillator strength
	Name       string  // canonical "<element> <ion> <rounded wavelength>"
	Identifier string  // display identifier, defaults to Name
	Field      string  // ion number density field, e.g. H_p0_number_density
}

// Database is an ordered, immutable line list.
type Database struct {
	lines []Line
}

// Default parses the line list bundled with the binary.
func Default() (*Database, error) {
	return Load(strings.NewReader(bundledLines))
}

// LoadFile parses the line list stored at path.
func LoadFile(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open line list: %w", err)
	}
	defer f.Close()
	db, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return db, nil
}

// Load parses a whitespace separated line list:
//
//	element ion wavelength gamma f_value [identifier...]
//
// Blank lines and lines starting with '#' are ignored.
func Load(r io.Reader) (*Database, error) {
	db := &Database{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		line, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
		}
		db.lines = append(db.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read line list: %w", err)
	}
	return db, nil
}

func parseLine(text string) (Line, error) {
	fields := strings.Fields(text)
	if len(fields) < 5 {
		return Line{}, fmt.Errorf("expected at least 5 fields, got %d", len(fields))
	}
	values := make([]float64, 3)
	for i, raw := range fields[2:5] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Line{}, fmt.Errorf("field %d: %w", i+3, err)
		}
		values[i] = v
	}
	if values[0] <= 0 {
		return Line{}, fmt.Errorf("non-positive wavelength %v", values[0])
	}
	ion, err := romanValue(fields[1])
	if err != nil {
		return Line{}, err
	}

	element := canonicalElement(fields[0])
	ionState := strings.ToUpper(fields[1])
	line := Line{
		Element:    element,
		IonState:   ionState,
		Wavelength: values[0],
		Gamma:      values[1],
		FValue:     values[2],
		Name:       fmt.Sprintf("%s %s %d", element, ionState, int(math.Round(values[0]))),
		Field:      fmt.Sprintf("%s_p%d_number_density", element, ion-1),
	}
	line.Identifier = line.Name
	if len(fields) > 5 {
		line.Identifier = strings.Join(fields[5:], " ")
	}
	return line, nil
}

// Len reports the number of lines.
func (db *Database) Len() int {
	return len(db.lines)
}

// Lines returns a copy of every line in database order.
func (db *Database) Lines() []Line {
	out := make([]Line, len(db.lines))
	copy(out, db.lines)
	return out
}

// Lookup resolves name and returns the first matching line.
func (db *Database) Lookup(name string) (Line, error) {
	lines, err := db.Resolve(name)
	if err != nil {
		return Line{}, err
	}
	return lines[0], nil
}

// Resolve expands terms into lines, preserving database order within each
// term and dropping duplicates across terms.
func (db *Database) Resolve(terms ...string) ([]Line, error) {
	seen := make(map[int]struct{})
	var out []Line
	for _, term := range terms {
		matches := db.match(term)
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLine, strings.TrimSpace(term))
		}
		for _, idx := range matches {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, db.lines[idx])
		}
	}
	return out, nil
}

func (db *Database) match(term string) []int {
	fields := strings.Fields(term)
	if len(fields) == 0 {
		return nil
	}
	normalized := strings.Join(fields, " ")
	var out []int

	if strings.EqualFold(normalized, "all") {
		for i := range db.lines {
			out = append(out, i)
		}
		return out
	}

	for i, line := range db.lines {
		if strings.EqualFold(line.Identifier, normalized) {
			out = append(out, i)
		}
	}
	if len(out) > 0 {
		return out
	}

	for i, line := range db.lines {
		var ok bool
		switch len(fields) {
		case 1:
			ok = line.Element == canonicalElement(fields[0])
		case 2:
			ok = line.Element == canonicalElement(fields[0]) && line.IonState == strings.ToUpper(fields[1])
		case 3:
			ok = strings.EqualFold(line.Name, normalized)
		}
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func canonicalElement(symbol string) string {
	return cases.Title(language.Und).String(strings.ToLower(symbol))
}

var romanDigits = map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50}

func romanValue(s string) (int, error) {
	upper := strings.ToUpper(s)
	if upper == "" {
		return 0, errors.New("empty ionization state")
	}
	total := 0
	for i := 0; i < len(upper); i++ {
		v, ok := romanDigits[upper[i]]
		if !ok {
			return 0, fmt.Errorf("ionization state %q is not a roman numeral", s)
		}
		if i+1 < len(upper) && romanDigits[upper[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total, nil
}
