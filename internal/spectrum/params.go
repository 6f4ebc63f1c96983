package spectrum

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrogo/fitsio"
)

const (
	// ParamsSection names the parameter table.
	ParamsSection = "PARAMS"
	// ParamWidth is the fixed character width of both parameter columns.
	ParamWidth = 50
)

// Parameter is one key/value pair of a run parameter file.
type Parameter struct {
	Key   string
	Value string
}

// ParseParameters reads "key = value" lines. Each line is split on its first
// '=' and both sides are trimmed. Blank lines and '#' comments are skipped.
func ParseParameters(r io.Reader) ([]Parameter, error) {
	var params []Parameter
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, fmt.Errorf("%w: line %d: missing '=' in %q", ErrParse, lineNo, text)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			return nil, fmt.Errorf("%w: line %d: empty key", ErrParse, lineNo)
		}
		if len(key) > ParamWidth || len(value) > ParamWidth {
			return nil, fmt.Errorf("%w: line %d: key and value are limited to %d characters", ErrParse, lineNo, ParamWidth)
		}
		params = append(params, Parameter{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read parameters: %w", ErrIO, err)
	}
	return params, nil
}

// AppendParameterTable parses the parameter file at path and appends it to c
// as the PARAMS table.
func (g *Generator) AppendParameterTable(c *Container, path string) error {
	if err := requireContainer(c); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open parameter file: %w", ErrIO, err)
	}
	defer f.Close()
	if err := g.AppendParameters(c, f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// AppendParameters is AppendParameterTable for an already open reader.
func (g *Generator) AppendParameters(c *Container, r io.Reader) error {
	if err := requireContainer(c); err != nil {
		return err
	}
	params, err := ParseParameters(r)
	if err != nil {
		return err
	}

	keys := make([]string, len(params))
	values := make([]string, len(params))
	for i, p := range params {
		keys[i], values[i] = p.Key, p.Value
	}
	width := fmt.Sprintf("%dA", ParamWidth)
	tbl, err := newTable([]Column{
		{Name: "PARAMETERS", Format: width, Data: keys},
		{Name: "VALUES", Format: width, Data: values},
	})
	if err != nil {
		return fmt.Errorf("%w: parameter table: %w", ErrInvalidArgument, err)
	}
	hdr, err := newHeader([]fitsio.Card{
		{Name: "SIM_CODE", Value: g.simCode},
		{Name: "COMPUTER", Value: g.computer},
	})
	if err != nil {
		return fmt.Errorf("%w: parameter table: %w", ErrInvalidArgument, err)
	}
	c.append(section{name: ParamsSection, header: hdr, table: tbl})
	g.logger.Debug("parameter table appended", "parameters", len(params))
	return nil
}
