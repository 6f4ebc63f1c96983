package testsupport

import (
	"context"
	"errors"
	"math"
	"sync"

	"misty/internal/spectrum"
)

// FakeSynthesizer returns a deterministic spectrum on the requested grid.
// Tau is a triangle peaking at 1 at the window centre and flux is 1 - tau.
type FakeSynthesizer struct {
	// Observables, when set, is returned for every line identifier.
	Observables map[string][]float64
	// Err, when set, fails every call.
	Err error
	// MaxSamples caps the grid length; zero means 64.
	MaxSamples int

	mu       sync.Mutex
	requests []spectrum.Request
}

// Synthesize implements spectrum.Synthesizer.
func (f *FakeSynthesizer) Synthesize(ctx context.Context, ray spectrum.Ray, req spectrum.Request) (*spectrum.Synthesis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ray == nil {
		return nil, errors.New("fake synthesizer: nil ray")
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	limit := f.MaxSamples
	if limit <= 0 {
		limit = 64
	}
	n := limit
	if req.Step > 0 {
		if steps := int((req.Window.Max-req.Window.Min)/req.Step) + 1; steps < n {
			n = steps
		}
	}
	if n < 1 {
		n = 1
	}
	out := &spectrum.Synthesis{
		Lambda: make([]float64, n),
		Tau:    make([]float64, n),
		Flux:   make([]float64, n),
	}
	mid := float64(n-1) / 2
	for i := 0; i < n; i++ {
		out.Lambda[i] = req.Window.Min + float64(i)*req.Step
		d := 1.0
		if mid > 0 {
			d = math.Abs(float64(i)-mid) / mid
		}
		out.Tau[i] = 1 - d
		out.Flux[i] = d
	}
	if len(f.Observables) > 0 {
		out.Observables = make(map[string]map[string][]float64, len(req.Lines))
		for _, line := range req.Lines {
			obs := make(map[string][]float64, len(f.Observables))
			for k, v := range f.Observables {
				obs[k] = append([]float64(nil), v...)
			}
			out.Observables[line.Identifier] = obs
		}
	}
	return out, nil
}

// Requests returns every request received so far.
func (f *FakeSynthesizer) Requests() []spectrum.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spectrum.Request(nil), f.requests...)
}
