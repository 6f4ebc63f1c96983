package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"misty/internal/logging"
	"misty/internal/services"
	"misty/internal/spectrum"
)

// ErrLocked reports that another build holds the output lock.
var ErrLocked = errors.New("output is locked by another build")

// Request describes one product build.
type Request struct {
	Ray    spectrum.Ray
	Lines  []string
	Params string
	Output string
	Author string
	Start  *spectrum.Position
	End    *spectrum.Position
	// SkipLineSections synthesizes every line without appending its section.
	SkipLineSections bool
}

// Result summarizes a finished build.
type Result struct {
	RunID    string
	Output   string
	Lines    []string
	Sections int
	Elapsed  time.Duration
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithRunIDs replaces the run ID source.
func WithRunIDs(next func() string) Option {
	return func(b *Builder) {
		if next != nil {
			b.nextID = next
		}
	}
}

// Builder runs product builds against a generator.
type Builder struct {
	gen    *spectrum.Generator
	logger *slog.Logger
	nextID func() string
}

// New constructs a Builder.
func New(gen *spectrum.Generator, opts ...Option) (*Builder, error) {
	if gen == nil {
		return nil, errors.New("product builder requires a generator")
	}
	b := &Builder{gen: gen, logger: logging.NewNop(), nextID: uuid.NewString}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "product")
	return b, nil
}

// Build runs header, parameters, lines and write in order. The first failure
// aborts the build; nothing is written unless every step succeeds.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	if req.Ray == nil {
		return nil, services.Wrap(services.ErrValidation, "build", "prepare", "ray is required", nil)
	}
	output := strings.TrimSpace(req.Output)
	if output == "" {
		output = spectrum.DefaultFilename
	}

	start := time.Now()
	runID := b.nextID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, b.logger)
	logger.Info("product build started",
		logging.String("ray", req.Ray.Basename()),
		logging.String("output", output),
		logging.Int("terms", len(req.Lines)),
	)

	stepCtx := services.WithStep(ctx, "header")
	c, err := b.gen.BuildHeader(req.Ray, spectrum.HeaderOptions{
		Start:  req.Start,
		End:    req.End,
		Lines:  req.Lines,
		Author: req.Author,
	})
	if err != nil {
		return nil, b.fail(stepCtx, err)
	}
	lines, err := b.gen.Lines().Resolve(req.Lines...)
	if err != nil {
		return nil, b.fail(stepCtx, err)
	}

	if req.Params != "" {
		stepCtx = services.WithStep(ctx, "params")
		if err := b.gen.AppendParameterTable(c, req.Params); err != nil {
			return nil, b.fail(stepCtx, err)
		}
		logging.WithContext(stepCtx, b.logger).Debug("parameter table added", logging.String("path", req.Params))
	}

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, b.fail(stepCtx, err)
		}
		stepCtx = services.WithLine(services.WithStep(ctx, "line"), line.Name)
		lineStart := time.Now()
		if _, err := b.gen.GenerateLine(stepCtx, req.Ray, line, !req.SkipLineSections, c); err != nil {
			return nil, b.fail(stepCtx, err)
		}
		logging.WithContext(stepCtx, b.logger).Info("line synthesized",
			logging.Duration("elapsed", time.Since(lineStart)),
			logging.Bool("written", !req.SkipLineSections),
		)
		names = append(names, line.Name)
	}

	stepCtx = services.WithStep(ctx, "write")
	if err := writeLocked(c, output); err != nil {
		return nil, b.fail(stepCtx, err)
	}

	result := &Result{
		RunID:    runID,
		Output:   output,
		Lines:    names,
		Sections: c.Len(),
		Elapsed:  time.Since(start),
	}
	logger.Info("product written",
		logging.String("output", output),
		logging.Int("sections", result.Sections),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (b *Builder) fail(ctx context.Context, err error) error {
	step, _ := services.StepFromContext(ctx)
	logging.WithContext(ctx, b.logger).Error("product build failed", logging.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}

func writeLocked(c *spectrum.Container, output string) error {
	lock := flock.New(output + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %w", spectrum.ErrIO, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, output)
	}
	defer func() { _ = lock.Unlock() }()
	return spectrum.WriteContainer(c, output)
}
