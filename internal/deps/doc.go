// Package deps checks that external programs referenced by the configuration
// can be found on PATH.
package deps
