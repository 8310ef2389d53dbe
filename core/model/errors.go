package model

import "errors"

var (
	// ErrInvalidControlValue is returned when a pump control value is not 0 or 1.
	ErrInvalidControlValue = errors.New("pump status must be 0 or 1")
	// ErrIndexOutOfRange is returned when an hour index falls outside a series.
	ErrIndexOutOfRange = errors.New("hour index out of range")
	// ErrTypeMismatch is returned when a pump collection contains an element
	// that is not a pump of the loaded network.
	ErrTypeMismatch = errors.New("must be a pump of the network")
	// ErrIncompletePumpSet is returned when a pump collection misses a pump
	// of the network or repeats one.
	ErrIncompletePumpSet = errors.New("every pump of the network must be given once")
)
