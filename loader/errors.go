package loader

import "github.com/pkg/errors"

var (
	// ErrEnvironmentUnsupported represents a hosting context that cannot perform dynamic loads
	ErrEnvironmentUnsupported = errors.New("environment does not support dynamic loading")
	// ErrSourceUnavailable represents a candidate source that failed, timed out or did not verify
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrAllSourcesExhausted represents a resource for which every candidate source failed
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
	// ErrNotYetLoaded represents direct access to a resource that was not confirmed loaded
	ErrNotYetLoaded = errors.New("resource not yet loaded")
	// ErrUnknownResource represents a resource name that was never registered
	ErrUnknownResource = errors.New("unknown resource")
	// ErrIntegrityMismatch represents a fetched body that does not match its integrity digest
	ErrIntegrityMismatch = errors.New("integrity digest mismatch")
)
