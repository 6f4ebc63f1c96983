package services

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	stepKey  contextKey = "step"
	lineKey  contextKey = "line"
)

// WithRunID annotates context with the product build identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the product build identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the build step name (header, params, line, write).
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stepKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithLine annotates context with the spectral line being synthesized.
func WithLine(ctx context.Context, line string) context.Context {
	if line == "" {
		return ctx
	}
	return context.WithValue(ctx, lineKey, line)
}

// LineFromContext returns the line name if present.
func LineFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(lineKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
