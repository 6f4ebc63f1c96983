// Package services defines shared utilities consumed by the product builder
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, build steps, and line names for
//     logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into consistent exit codes.
//
// Integrations with external programs live in subpackages (see trident).
package services
