package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAuth indicates the source credentials could not be exchanged for a token
	ErrAuth = errors.New("authentication failed")

	// ErrSource indicates the source API returned an unusable response
	ErrSource = errors.New("source request failed")

	// ErrMalformedEvent indicates a raw play event is missing required fields
	ErrMalformedEvent = errors.New("malformed play event")

	// ErrSchemaMismatch indicates the store lacks a required table or column
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrLoadFailed indicates at least one entity failed to load
	ErrLoadFailed = errors.New("load failed")

	// ErrOutOfOrder indicates an entity was loaded before the entity it references
	ErrOutOfOrder = errors.New("load out of order")
)
