package spectrum

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// DateLayout is the DATE card format: ISO-8601 with microseconds, no zone.
const DateLayout = "2006-01-02T15:04:05.000000"

// Position is a point in simulation code units.
type Position [3]float64

// String renders the position as "[x, y, z]".
func (p Position) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = formatCoord(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func positionValue(p *Position) string {
	if p == nil {
		return "None"
	}
	return p.String()
}

// DefaultAuthor is written when HeaderOptions.Author is empty.
const DefaultAuthor = "NAME"

// HeaderOptions describes the primary header of a product.
type HeaderOptions struct {
	Start  *Position
	End    *Position
	Lines  []string
	Author string
}

// BuildHeader creates a Container whose only section is the primary header.
// Every line term is resolved against the generator's database; NLINES
// counts the resolved lines.
func (g *Generator) BuildHeader(ray Ray, opts HeaderOptions) (*Container, error) {
	if ray == nil {
		return nil, fmt.Errorf("%w: ray is required", ErrInvalidArgument)
	}
	lines, err := g.lines.Resolve(opts.Lines...)
	if err != nil {
		return nil, fmt.Errorf("build header: %w", err)
	}

	author := opts.Author
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}
	cards := []fitsio.Card{
		{Name: "AUTHOR", Value: author},
		{Name: "DATE", Value: g.clock().Format(DateLayout)},
		{Name: "RAYSTART", Value: positionValue(opts.Start)},
		{Name: "RAYEND", Value: positionValue(opts.End)},
		{Name: "SIM_NAME", Value: ray.Basename()},
		{Name: "NLINES", Value: len(lines)},
	}
	for i, line := range lines {
		cards = append(cards, fitsio.Card{Name: "LINE_" + strconv.Itoa(i+1), Value: line.Name})
	}
	hdr, err := newHeader(cards)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrInvalidArgument, err)
	}

	g.logger.Debug("header built", "sim_name", ray.Basename(), "lines", len(lines))
	return &Container{sections: []section{{header: hdr}}}, nil
}
