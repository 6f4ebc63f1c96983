// Package main hosts the Misty CLI entrypoint and command graph.
//
// The Cobra-based command tree builds spectrum products from ray files,
// browses the line database, inspects written products, and scaffolds
// configuration. It centralizes configuration resolution and logging setup so
// subcommands only translate flags into product requests.
//
// Keep this package lean: product semantics live in internal/spectrum and
// internal/product; commands here only surface them.
package main
