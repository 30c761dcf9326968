package model

import "errors"

// Input errors, surfaced verbatim as {"error": "..."} CLI payloads.
var (
	ErrMissingID      = errors.New("missing required field: id")
	ErrMissingContent = errors.New("missing required field: content")
	ErrMissingQuery   = errors.New("missing required field: query")
)
