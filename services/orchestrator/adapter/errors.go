package adapter

import (
	"errors"
	"net/http"
)

// ErrUnknownAdapter signals an adapter type that is not supported
var ErrUnknownAdapter = errors.New("unknown adapter type")

// ErrEmptyCommand signals a launch command without any token
var ErrEmptyCommand = errors.New("empty launch command")

// ErrAdapterClosed signals a launch attempted after shutdown
var ErrAdapterClosed = errors.New("adapter is closed")

// ErrSwarmRejected signals that the load generator refused the new load
var ErrSwarmRejected = errors.New("swarm request rejected")

type errStatusNotOK int

func (e errStatusNotOK) Error() string {
	return "non-2xx HTTP status code: " + http.StatusText(int(e))
}

type errPathNotFound string

func (e errPathNotFound) Error() string {
	return "JSON path not found in response: " + string(e)
}
