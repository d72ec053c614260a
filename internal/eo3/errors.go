package eo3

import "fmt"

// InputError marks invalid caller input, such as a measurement list with
// nothing to reconcile.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// UnsupportedFormatError is returned when a raster cannot be used for
// region reconciliation, e.g. a file carrying more than one band when
// the measurement does not name which to use.
type UnsupportedFormatError struct {
	Location string
	Bands    int
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported raster %q: expected a single band, found %d", e.Location, e.Bands)
}
