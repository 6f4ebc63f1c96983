package trident

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"misty/internal/linedb"
	"misty/internal/logging"
	"misty/internal/services"
	"misty/internal/spectrum"
)

// DefaultBinary is the synthesizer looked up on PATH when none is configured.
const DefaultBinary = "trident-spectrum"

const stderrTail = 512

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) (stdout []byte, stderr []byte, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithArgs appends fixed arguments to every invocation.
func WithArgs(args ...string) Option {
	return func(c *Client) {
		c.args = append(c.args, args...)
	}
}

// Client wraps synthesizer invocations.
type Client struct {
	binary  string
	args    []string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a synthesizer client. A timeoutSeconds of zero disables the
// per-call timeout.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("synthesizer binary required")
	}
	if timeoutSeconds < 0 {
		return nil, fmt.Errorf("synthesizer timeout must not be negative, got %d", timeoutSeconds)
	}
	c := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "trident")
	return c, nil
}

// pather is implemented by rays backed by a file.
type pather interface {
	Path() string
}

type lineSpec struct {
	Name       string  `json:"name"`
	Identifier string  `json:"identifier"`
	Element    string  `json:"element"`
	IonState   string  `json:"ion_state"`
	Wavelength float64 `json:"wavelength"`
	Gamma      float64 `json:"gamma"`
	FValue     float64 `json:"f_value"`
	Field      string  `json:"field"`
}

type request struct {
	Ray       string     `json:"ray,omitempty"`
	Redshifts []float64  `json:"redshifts,omitempty"`
	LambdaMin float64    `json:"lambda_min"`
	LambdaMax float64    `json:"lambda_max"`
	DLambda   float64    `json:"dlambda"`
	Lines     []lineSpec `json:"lines"`
}

type response struct {
	Lambda      []float64                       `json:"lambda"`
	Tau         []float64                       `json:"tau"`
	Flux        []float64                       `json:"flux"`
	Observables map[string]map[string][]float64 `json:"observables"`
}

// Synthesize implements spectrum.Synthesizer.
func (c *Client) Synthesize(ctx context.Context, ray spectrum.Ray, req spectrum.Request) (*spectrum.Synthesis, error) {
	if ray == nil {
		return nil, services.Wrap(services.ErrValidation, "synthesis", "prepare", "ray is required", nil)
	}
	payload, err := json.Marshal(buildRequest(ray, req))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "synthesis", "encode request", "", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, c.logger)
	logger.Debug("invoking synthesizer",
		logging.String("binary", c.binary),
		logging.Int("lines", len(req.Lines)),
		logging.Float64("lambda_min", req.Window.Min),
		logging.Float64("lambda_max", req.Window.Max),
	)
	start := time.Now()
	stdout, stderr, err := c.exec.Run(runCtx, c.binary, c.args, payload)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "synthesis", c.binary,
				fmt.Sprintf("exceeded %s", c.timeout), err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "synthesis", c.binary, tail(stderr), err)
	}

	var resp response
	if err := json.Unmarshal(stdout, &resp); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "synthesis", c.binary, "decode spectrum", err)
	}
	logger.Debug("synthesizer finished",
		logging.Duration("elapsed", time.Since(start)),
		logging.Int("samples", len(resp.Lambda)),
	)
	return &spectrum.Synthesis{
		Lambda:      resp.Lambda,
		Tau:         resp.Tau,
		Flux:        resp.Flux,
		Observables: resp.Observables,
	}, nil
}

func buildRequest(ray spectrum.Ray, req spectrum.Request) request {
	out := request{
		LambdaMin: req.Window.Min,
		LambdaMax: req.Window.Max,
		DLambda:   req.Step,
		Lines:     make([]lineSpec, 0, len(req.Lines)),
	}
	if p, ok := ray.(pather); ok && p.Path() != "" {
		out.Ray = p.Path()
	} else {
		out.Redshifts = ray.Redshifts()
	}
	for _, l := range req.Lines {
		out.Lines = append(out.Lines, specFor(l))
	}
	return out
}

func specFor(l linedb.Line) lineSpec {
	return lineSpec{
		Name:       l.Name,
		Identifier: l.Identifier,
		Element:    l.Element,
		IonState:   l.IonState,
		Wavelength: l.Wavelength,
		Gamma:      l.Gamma,
		FValue:     l.FValue,
		Field:      l.Field,
	}
}

func tail(stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if len(msg) > stderrTail {
		msg = "..." + msg[len(msg)-stderrTail:]
	}
	if msg == "" {
		return "synthesizer failed"
	}
	return msg
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), stderr.Bytes(), fmt.Errorf("run %s: %w", binary, err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}
