package domain

import "errors"

var (
	// ErrInvalidInput marks a contract violation on extractor input
	// (e.g. text that is not valid UTF-8). Malformed-but-valid text is
	// never an error; it just yields fewer fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable wraps write-path failures from the tabular
	// store. Surfaced to the caller as-is; no automatic retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
