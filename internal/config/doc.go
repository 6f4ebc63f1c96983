// Package config loads, normalizes, and validates Misty configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes the knobs the
// CLI needs: product provenance, the line database, the synthesizer binary and
// log output.
//
// The spectrum packages never read configuration themselves; the CLI passes
// resolved values in explicitly.
package config
