package config

import "errors"

// ErrMissingKey signals a required configuration key that was not set
var ErrMissingKey = errors.New("missing required config key")

// ErrInvalidValue signals a configuration value out of its accepted range
var ErrInvalidValue = errors.New("invalid config value")

// ErrTestFileNotFound signals that adapter.test_file does not point to a file
var ErrTestFileNotFound = errors.New("test file not found")

// ErrUnsupportedConfigFormat signals a config file extension other than toml/yaml/yml
var ErrUnsupportedConfigFormat = errors.New("unsupported config file format")
