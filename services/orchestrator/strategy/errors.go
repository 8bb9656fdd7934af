package strategy

import "errors"

// ErrUnknownStrategy signals a strategy type that is not registered
var ErrUnknownStrategy = errors.New("unknown strategy type")

// ErrInvalidParameter signals a strategy parameter out of its accepted range
var ErrInvalidParameter = errors.New("invalid strategy parameter")
