// Package trident runs an external spectrum synthesizer.
//
// The synthesizer is any executable that reads one JSON request on stdin and
// writes one JSON spectrum on stdout. The request names the ray file, the
// wavelength window and the lines to deposit; the response carries the
// wavelength grid, optical depth, normalized flux and per-line tau-weighted
// observables. A non-zero exit status is reported with the tail of stderr.
package trident
