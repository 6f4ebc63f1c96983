package spectrum

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/astrogo/fitsio"

	"misty/internal/linedb"
	"misty/internal/logging"
	"misty/internal/services"
)

const (
	// Step is the wavelength sampling of every synthesized spectrum, in Angstrom.
	Step = 0.01
	// WindowMargin pads the redshifted line range on both sides, in Angstrom.
	WindowMargin = 1.0

	// Sentinel marks header values that downstream fitting has not computed.
	Sentinel = -9999.0
	// Components is the number of profile components reserved for fits.
	Components = 5

	observablePrefix = "sim_"
)

var (
	aggregateKeys = []string{"SIM_TAU_HDENS", "SIM_TAU_TEMP", "SIM_TAU_METAL"}
	fitMetrics    = []string{"fit_EW", "fit_coldens", "fit_vcenter", "fit_b", "fit_delv90"}
)

// Window is a wavelength range in Angstrom.
type Window struct {
	Min float64
	Max float64
}

// ComputeWindow brackets every redshifted position of a line with rest
// wavelength rest along a ray whose samples have the given redshifts.
func ComputeWindow(rest float64, redshifts []float64) (Window, error) {
	if len(redshifts) == 0 {
		return Window{}, fmt.Errorf("%w: ray has no redshift samples", ErrInvalidArgument)
	}
	zmin, zmax := redshifts[0], redshifts[0]
	for _, z := range redshifts[1:] {
		if z < zmin {
			zmin = z
		}
		if z > zmax {
			zmax = z
		}
	}
	return Window{
		Min: rest*(1+zmin) - WindowMargin,
		Max: rest*(1+zmax) + WindowMargin,
	}, nil
}

// AggregateKeys lists the tau-weighted placeholder keywords.
func AggregateKeys() []string {
	return append([]string(nil), aggregateKeys...)
}

// FitKeys lists the per-component fit placeholder keywords, component-major:
// fit_EW0, fit_coldens0, ..., fit_delv904.
func FitKeys() []string {
	keys := make([]string, 0, Components*len(fitMetrics))
	for j := 0; j < Components; j++ {
		for _, metric := range fitMetrics {
			keys = append(keys, metric+strconv.Itoa(j))
		}
	}
	return keys
}

// PlaceholderKeys lists every keyword a fresh spectrum section holds at
// Sentinel.
func PlaceholderKeys() []string {
	return append(AggregateKeys(), FitKeys()...)
}

// GenerateLineByName resolves name and calls GenerateLine with the first
// matching line.
func (g *Generator) GenerateLineByName(ctx context.Context, ray Ray, name string, write bool, c *Container) (*Synthesis, error) {
	if write {
		if err := requireContainer(c); err != nil {
			return nil, err
		}
	}
	line, err := g.lines.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("generate line: %w", err)
	}
	return g.GenerateLine(ctx, ray, line, write, c)
}

// GenerateLine synthesizes line along ray. When write is true the spectrum
// table is appended to c. The synthesis result is returned either way.
func (g *Generator) GenerateLine(ctx context.Context, ray Ray, line linedb.Line, write bool, c *Container) (*Synthesis, error) {
	if write {
		if err := requireContainer(c); err != nil {
			return nil, err
		}
	}
	if ray == nil {
		return nil, fmt.Errorf("%w: ray is required", ErrInvalidArgument)
	}
	window, err := ComputeWindow(line.Wavelength, ray.Redshifts())
	if err != nil {
		return nil, fmt.Errorf("line %s: %w", line.Name, err)
	}

	logger := logging.WithContext(services.WithLine(ctx, line.Name), g.logger)
	logger.Debug("synthesizing line", "lambda_min", window.Min, "lambda_max", window.Max)
	result, err := g.synth.Synthesize(ctx, ray, Request{Window: window, Step: Step, Lines: []linedb.Line{line}})
	if err != nil {
		return nil, fmt.Errorf("synthesize %s: %w", line.Name, err)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: synthesizer returned no result for %s", ErrInvalidSpectrum, line.Name)
	}

	if write {
		sec, err := lineSection(line, result)
		if err != nil {
			return nil, err
		}
		c.append(sec)
		logger.Debug("line section appended", "rows", sec.table.NumRows(), "columns", sec.table.NumCols())
	}
	return result, nil
}

func lineSection(line linedb.Line, result *Synthesis) (section, error) {
	rows := len(result.Lambda)
	if len(result.Tau) != rows || len(result.Flux) != rows {
		return section{}, fmt.Errorf("%w: %s: wavelength, tau and flux lengths differ (%d, %d, %d)",
			ErrInvalidSpectrum, line.Name, rows, len(result.Tau), len(result.Flux))
	}

	cols := []Column{
		{Name: "wavelength", Format: "D", Unit: "Angstrom", Data: clone(result.Lambda)},
		{Name: "tau", Format: "D", Data: clone(result.Tau)},
		{Name: "flux", Format: "D", Data: clone(result.Flux)},
	}
	observables := result.Observables[line.Identifier]
	keys := make([]string, 0, len(observables))
	for key := range observables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := observables[key]
		if len(values) > rows {
			return section{}, fmt.Errorf("%w: %s: observable %q has %d samples for %d wavelengths",
				ErrInvalidSpectrum, line.Name, key, len(values), rows)
		}
		padded := make([]float64, rows)
		copy(padded, values)
		cols = append(cols, Column{Name: observablePrefix + key, Format: "D", Data: padded})
	}

	cards := []fitsio.Card{
		{Name: "LINENAME", Value: line.Identifier},
		{Name: "RESTWAVE", Value: line.Wavelength},
		{Name: "F_VALUE", Value: line.FValue},
		{Name: "GAMMA", Value: line.Gamma},
	}
	for _, key := range aggregateKeys {
		cards = append(cards, fitsio.Card{Name: key, Value: Sentinel})
	}
	cards = append(cards, fitsio.Card{Name: "NCOMPONENTS", Value: Components})
	for _, key := range FitKeys() {
		cards = append(cards, fitsio.Card{Name: key, Value: Sentinel})
	}
	hdr, err := newHeader(cards)
	if err != nil {
		return section{}, fmt.Errorf("%w: %s: %w", ErrInvalidArgument, line.Name, err)
	}

	tbl, err := newTable(cols)
	if err != nil {
		return section{}, fmt.Errorf("%w: %s: %w", ErrInvalidSpectrum, line.Name, err)
	}
	return section{name: line.Name, header: hdr, table: tbl}, nil
}

func clone(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}
