package core

import "errors"

// Validation errors. All of these are caused by the client and map to a
// 4xx response with the error text as the message.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrQuotaExceeded   = errors.New("storage quota exceeded")
	ErrMalwareDetected = errors.New("malware detected")
)

// Ingestion errors. Server side, rollback has already run by the time one
// of these is returned. The client only ever sees a generic message.
var (
	ErrUploadFailed    = errors.New("could not store upload")
	ErrMetadataPersist = errors.New("could not persist metadata")
)

// Streaming errors.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// ErrScanner means the malware scanner could not give a verdict. This is
// never treated as a clean result.
var ErrScanner = errors.New("scanner unavailable")

// ErrInternal covers faults recovered at the pipeline boundary.
var ErrInternal = errors.New("internal error")
