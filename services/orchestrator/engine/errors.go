package engine

import "errors"

// ErrNilAdapter signals that a nil adapter was provided
var ErrNilAdapter = errors.New("nil adapter")

// ErrNilStrategy signals that a nil strategy was provided
var ErrNilStrategy = errors.New("nil strategy")

// ErrNilAnalyzer signals that a nil analyzer was provided
var ErrNilAnalyzer = errors.New("nil analyzer")

// ErrInvalidInterval signals a non-positive timer interval
var ErrInvalidInterval = errors.New("invalid interval")

// ErrAlreadyStarted signals a second Run call on the same orchestrator
var ErrAlreadyStarted = errors.New("orchestrator already started")
