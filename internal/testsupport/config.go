package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"misty/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Output.Author = "test"
	cfgVal.Output.Filename = filepath.Join(base, "out", "spectrum.fits")
	cfgVal.Logging.Dir = filepath.Join(base, "logs")
	cfgVal.Synthesis.TimeoutSeconds = 10

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAuthor sets the product author on the test config.
func WithAuthor(author string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Output.Author = author
	}
}

// WithDefaultLines overrides the default line subset.
func WithDefaultLines(terms ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lines.Default = append([]string(nil), terms...)
	}
}

// WithLineDatabase points the config at a custom line list.
func WithLineDatabase(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lines.Database = path
	}
}

// WithStubbedSynthesizer writes a synthesizer executable with the given
// shell body, points the config at it, and prepends its directory to PATH.
// An empty body stubs a synthesizer that drains stdin and prints a
// three-sample spectrum.
func WithStubbedSynthesizer(body string) ConfigOption {
	return func(b *configBuilder) {
		if body == "" {
			body = StubSpectrumScript
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "trident-spectrum")
		if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
			b.t.Fatalf("write stub synthesizer: %v", err)
		}
		b.cfg.Synthesis.Binary = target

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// StubSpectrumScript is the default stub synthesizer body.
const StubSpectrumScript = `cat > /dev/null
printf '{"lambda":[1215.0,1215.01,1215.02],"tau":[0.0,0.5,0.0],"flux":[1.0,0.6,1.0]}'
`

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Logging.Dir)
}
