package common

import "errors"

// ErrRunInProgress signals that the operation is not allowed while a run is active
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrNoActiveRun signals that there is no run to act upon
var ErrNoActiveRun = errors.New("no active run")
