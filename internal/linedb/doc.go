// Package linedb loads atomic absorption line lists and resolves line names
// against them.
//
// A Database is built explicitly from a reader, a file, or the list bundled
// with the binary (Default). Nothing here is process-global, so tests and
// callers can run with different lists side by side.
//
// Resolve accepts the same vocabulary as the upstream synthesis tooling:
//   - "all" for every line
//   - an element ("H", "Si")
//   - an ion ("C IV")
//   - a canonical line name ("C IV 1548")
//   - a display identifier ("Ly a")
//
// Matching ignores case. Unknown terms fail with ErrUnknownLine.
package linedb
