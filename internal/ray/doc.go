// Package ray loads light-ray samples from FITS files.
//
// A ray file holds at least one binary table with a redshift_eff column, the
// effective redshift of every sample along the sightline. Only that column is
// read; the synthesizer reopens the file by path for everything else.
package ray
