// Package spectrum assembles synthetic absorption-line products.
//
// A product is a Container: a FITS primary header describing the ray and the
// line list, followed by binary table sections. The workflow is strictly
// sequential and append-only:
//
//  1. Generator.BuildHeader creates the Container.
//  2. Generator.AppendParameterTable attaches the PARAMS table.
//  3. Generator.GenerateLine synthesizes one line through the Synthesizer and,
//     when asked to, appends its spectrum table.
//  4. WriteContainer serializes the Container, replacing any existing file.
//
// Spectrum sections reserve fitting results with the documented sentinel
// value -9999 (see Sentinel and PlaceholderKeys); downstream fitting tools
// overwrite them in place.
//
// A Container must not be appended to from more than one goroutine.
package spectrum
