package spectrum

import "errors"

var (
	// ErrInvalidArgument reports a missing or unbuilt container, or an input
	// that cannot be represented in the product.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrParse reports a malformed parameter file.
	ErrParse = errors.New("parse failure")
	// ErrIO reports a failure reading or writing product files.
	ErrIO = errors.New("io failure")
	// ErrInvalidSpectrum reports a synthesis result whose arrays do not line
	// up with its wavelength grid.
	ErrInvalidSpectrum = errors.New("invalid spectrum")
)

var errNotBuilt = errors.New("container must be created by BuildHeader first")
