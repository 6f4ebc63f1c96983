package spectrum

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"misty/internal/linedb"
	"misty/internal/logging"
)

const (
	// DefaultSimCode and DefaultComputer populate the PARAMS table header.
	DefaultSimCode  = "enzo"
	DefaultComputer = "pleiades"
)

// Ray is a sampled sightline through a simulation volume.
type Ray interface {
	// Basename identifies the simulation output the ray was cast through.
	Basename() string
	// Redshifts returns the effective redshift of every ray sample.
	Redshifts() []float64
}

// Request describes one synthesis run.
type Request struct {
	Window Window
	Step   float64
	Lines  []linedb.Line
}

// Synthesis is the result of a synthesis run. Observables are keyed by line
// identifier and then by observable name.
type Synthesis struct {
	Lambda      []float64
	Tau         []float64
	Flux        []float64
	Observables map[string]map[string][]float64
}

// Synthesizer computes optical depth and flux for a ray.
type Synthesizer interface {
	Synthesize(ctx context.Context, ray Ray, req Request) (*Synthesis, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Generator builds product sections from a line database and a synthesis
// engine.
type Generator struct {
	lines    *linedb.Database
	synth    Synthesizer
	clock    Clock
	logger   *slog.Logger
	simCode  string
	computer string
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock used for the DATE card.
func WithClock(clock Clock) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSite overrides the SIM_CODE and COMPUTER cards of the PARAMS table.
func WithSite(simCode, computer string) Option {
	return func(g *Generator) {
		if simCode != "" {
			g.simCode = simCode
		}
		if computer != "" {
			g.computer = computer
		}
	}
}

// NewGenerator wires a Generator. Both the line database and the
// synthesizer are required.
func NewGenerator(lines *linedb.Database, synth Synthesizer, opts ...Option) (*Generator, error) {
	if lines == nil {
		return nil, errors.New("spectrum generator requires a line database")
	}
	if synth == nil {
		return nil, errors.New("spectrum generator requires a synthesizer")
	}
	g := &Generator{
		lines:    lines,
		synth:    synth,
		clock:    time.Now,
		logger:   logging.NewNop(),
		simCode:  DefaultSimCode,
		computer: DefaultComputer,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logging.NewComponentLogger(g.logger, "spectrum")
	return g, nil
}

// Lines exposes the line database the generator resolves against.
func (g *Generator) Lines() *linedb.Database {
	return g.lines
}
