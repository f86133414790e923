package storage

import "errors"

var (
	// ErrNotFound is returned when a category directory or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDisallowedFileType is returned when an upload name has no allowed extension.
	ErrDisallowedFileType = errors.New("disallowed file type")
	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrStorage wraps every other filesystem failure.
	ErrStorage = errors.New("storage error")
)
