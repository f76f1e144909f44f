package secrets

import "errors"

var (
	// ErrInvalidRegex indicates an allowlist regex pattern failed to compile.
	ErrInvalidRegex = errors.New("invalid regex pattern")

	// ErrInvalidTOML indicates an allowlist TOML file could not be parsed.
	ErrInvalidTOML = errors.New("invalid TOML format")
)
