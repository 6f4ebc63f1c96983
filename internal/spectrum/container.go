package spectrum

import (
	"fmt"
	"strings"

	"github.com/astrogo/fitsio"

	"misty/internal/fitsfile"
)

// Container is an in-memory product: the primary header followed by table
// sections. Only BuildHeader and ReadContainer return valid containers.
type Container struct {
	sections []section
}

type section struct {
	name   string
	header Header
	table  *Table
}

// Section is a read-only view of one container section. Table is nil for the
// primary header.
type Section struct {
	Name   string
	Header Header
	Table  *Table
}

// Header is the ordered list of user cards of one section.
type Header struct {
	cards []fitsio.Card
}

// Len reports the number of cards.
func (h Header) Len() int { return len(h.cards) }

// Cards returns a copy of the cards in order.
func (h Header) Cards() []fitsio.Card {
	return append([]fitsio.Card(nil), h.cards...)
}

// Keys returns the keywords in order.
func (h Header) Keys() []string {
	keys := make([]string, 0, len(h.cards))
	for _, c := range h.cards {
		keys = append(keys, c.Name)
	}
	return keys
}

// Get returns the first card whose keyword matches key, ignoring case.
func (h Header) Get(key string) (fitsio.Card, bool) {
	for _, c := range h.cards {
		if strings.EqualFold(c.Name, key) {
			return c, true
		}
	}
	return fitsio.Card{}, false
}

// StringValue returns a string-valued keyword.
func (h Header) StringValue(key string) (string, bool) {
	c, ok := h.Get(key)
	if !ok {
		return "", false
	}
	s, ok := c.Value.(string)
	return s, ok
}

// Float returns a numeric keyword as float64. Integer cards are converted.
func (h Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int returns an integer keyword.
func (h Header) Int(key string) (int64, bool) {
	c, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	v, ok := c.Value.(int)
	return int64(v), ok
}

// Column is one table field. Data is []float64 for format D and []string for
// character formats such as 50A.
type Column struct {
	Name   string
	Format string
	Unit   string
	Data   any
}

// Len reports the number of rows held by the column.
func (c Column) Len() int {
	switch d := c.Data.(type) {
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// Floats returns a copy of numeric column data.
func (c Column) Floats() ([]float64, bool) {
	d, ok := c.Data.([]float64)
	if !ok {
		return nil, false
	}
	return append([]float64(nil), d...), true
}

// Strings returns a copy of character column data.
func (c Column) Strings() ([]string, bool) {
	d, ok := c.Data.([]string)
	if !ok {
		return nil, false
	}
	return append([]string(nil), d...), true
}

// Table holds equally long columns.
type Table struct {
	columns []Column
	rows    int
}

func newTable(cols []Column) (*Table, error) {
	t := &Table{columns: cols}
	for i, c := range cols {
		switch c.Data.(type) {
		case []float64, []string:
		default:
			return nil, fmt.Errorf("column %s: unsupported data %T", c.Name, c.Data)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %s has %d rows, want %d", c.Name, c.Len(), t.rows)
		}
	}
	return t, nil
}

// NumRows reports the row count.
func (t *Table) NumRows() int { return t.rows }

// NumCols reports the column count.
func (t *Table) NumCols() int { return len(t.columns) }

// Columns returns the columns in order.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// Column returns the column called name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Rows reports the table row count, or 0 for the primary header.
func (s Section) Rows() int {
	if s.Table == nil {
		return 0
	}
	return s.Table.NumRows()
}

// ColumnNames lists table columns in order.
func (s Section) ColumnNames() []string {
	if s.Table == nil {
		return nil
	}
	names := make([]string, 0, s.Table.NumCols())
	for _, c := range s.Table.columns {
		names = append(names, c.Name)
	}
	return names
}

// Valid reports whether c was built by BuildHeader or ReadContainer.
func (c *Container) Valid() bool {
	return c != nil && len(c.sections) > 0 && c.sections[0].table == nil
}

// Len reports the number of sections, header included.
func (c *Container) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sections)
}

// Header returns the primary header cards.
func (c *Container) Header() Header {
	if !c.Valid() {
		return Header{}
	}
	return c.sections[0].header
}

// Sections returns views of every section in order.
func (c *Container) Sections() []Section {
	if c == nil {
		return nil
	}
	out := make([]Section, 0, len(c.sections))
	for _, s := range c.sections {
		out = append(out, Section{Name: s.name, Header: s.header, Table: s.table})
	}
	return out
}

// Table returns the first table section whose name matches, ignoring case.
func (c *Container) Table(name string) (Section, bool) {
	for _, s := range c.Sections() {
		if s.Table != nil && strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Section{}, false
}

func (c *Container) append(s section) {
	c.sections = append(c.sections, s)
}

func requireContainer(c *Container) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, errNotBuilt)
	}
	return nil
}

// newHeader validates cards and rounds reals to the precision a header card
// keeps on disk, so a written and re-read container compares equal.
func newHeader(cards []fitsio.Card) (Header, error) {
	out := make([]fitsio.Card, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if err := fitsfile.ValidateCard(c); err != nil {
			return Header{}, err
		}
		key := strings.ToUpper(c.Name)
		if seen[key] {
			return Header{}, fmt.Errorf("%w: duplicate keyword %s", fitsfile.ErrInvalidCard, c.Name)
		}
		seen[key] = true
		switch v := c.Value.(type) {
		case float64:
			c.Value = fitsfile.CardFloat(v)
		case int64:
			c.Value = int(v)
		}
		out = append(out, c)
	}
	return Header{cards: out}, nil
}
