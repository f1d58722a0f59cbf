// Package errtax names the error taxonomy shared by every component: the set of
// failure shapes the Torznab surface is allowed to distinguish between.
package errtax

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy's non-structured members.
var (
	// ErrUnknownQueryType means the Torznab t= parameter was not caps/search/tvsearch.
	ErrUnknownQueryType = errors.New("unknown query type")
	// ErrAuthentication means the apikey parameter did not match.
	ErrAuthentication = errors.New("invalid api key")
	// ErrMappingMiss means no AnimeMapping could be produced for a series id.
	ErrMappingMiss = errors.New("no mapping for series")
	// ErrUpstream wraps any HTTP/parse/rate-limit failure from an external collaborator.
	// Callers should use UpstreamFailure to build a value carrying the collaborator name.
	ErrUpstream = errors.New("upstream failure")
)

// ConfigurationError reports a missing or invalid required setting at startup. It is
// fatal: the process should exit rather than start degraded.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
}

// UpstreamFailure wraps a failure from an indexer, metadata, episode-map, or PVR call.
// It is always logged and swallowed by the caller; the caller substitutes "no data" at
// the call site rather than propagating it to the HTTP layer.
type UpstreamFailure struct {
	Collaborator string
	Err          error
}

func (e *UpstreamFailure) Error() string {
	return fmt.Sprintf("upstream failure (%s): %v", e.Collaborator, e.Err)
}

func (e *UpstreamFailure) Unwrap() error { return e.Err }

func (e *UpstreamFailure) Is(target error) bool { return target == ErrUpstream }

// NewUpstreamFailure builds an UpstreamFailure naming the collaborator that failed.
func NewUpstreamFailure(collaborator string, err error) *UpstreamFailure {
	return &UpstreamFailure{Collaborator: collaborator, Err: err}
}

// CacheCorruption reports a failure to load or write a persisted cache. Load failures
// are recovered by continuing with an empty in-memory state; write failures are logged
// and otherwise ignored.
type CacheCorruption struct {
	Path string
	Op   string // "load" or "write"
	Err  error
}

func (e *CacheCorruption) Error() string {
	return fmt.Sprintf("cache %s (%s): %v", e.Op, e.Path, e.Err)
}

func (e *CacheCorruption) Unwrap() error { return e.Err }
