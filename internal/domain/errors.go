package domain

import "errors"

// Domain errors represent error conditions in the auditship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("auditship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("auditship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("auditship: shutdown timeout")

	// ErrClosed is returned when Start() is called on an instance that was stopped.
	ErrClosed = errors.New("auditship: instance closed")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("auditship: invalid configuration")

	// ErrNoConnection is reported when a dispatch finds no live connection.
	ErrNoConnection = errors.New("auditship: no live connection")

	// ErrEmptyPayload is reported when a dispatch is asked to send nothing.
	ErrEmptyPayload = errors.New("auditship: empty payload")

	// ErrDisasterFileTooLarge is returned when the existing disaster file exceeds
	// the configured size limit. The file is deleted and the write abandoned.
	ErrDisasterFileTooLarge = errors.New("auditship: disaster file exceeds size limit")

	// ErrMalformedFrame is returned when a wire frame or envelope cannot be decoded.
	ErrMalformedFrame = errors.New("auditship: malformed frame")
)
