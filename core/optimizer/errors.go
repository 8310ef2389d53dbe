package optimizer

import "errors"

// ErrNotTrained is returned by Control before a trial has completed.
var ErrNotTrained = errors.New("optimizer: not trained")
