package loader

import (
	"context"
	"time"
)

// Source is a candidate origin a resource can be fetched from
type Source struct {
	// URL of the resource at this origin
	URL string `json:"url"`
	// Integrity is an optional subresource integrity value ("sha384-<base64>")
	Integrity string `json:"integrity,omitempty"`
	// CrossOrigin is an optional cross-origin policy ("anonymous", "use-credentials")
	CrossOrigin string `json:"crossorigin,omitempty"`
}

// Resource describes an external library and where to get it
type Resource struct {
	// Name is the logical identifier of the library
	Name string
	// Sources are tried in order until one loads and verifies
	Sources []Source
	// Present reports whether the library's entry point is currently available.
	// It is used both as fast path and as post load verification.
	// A nil Present skips verification.
	Present func() bool
	// Timeout overrides the loader timeout for each attempt of this resource
	Timeout time.Duration
}

// present is the fast path check, false when no check is configured
func (r Resource) present() bool {
	return r.Present != nil && r.Present()
}

// verify is the post load check, true when no check is configured
func (r Resource) verify() bool {
	return r.Present == nil || r.Present()
}

// Reference is a single loadable reference injected into the environment
type Reference struct {
	// ID uniquely identifies the reference within the environment
	ID string
	// Resource is the name of the resource the reference belongs to
	Resource string
	// Source is the candidate origin the reference points at
	Source Source
}

// Injector creates loadable references in the hosting environment
type Injector interface {
	// Inject starts fetching and executing the reference.
	// The returned injection reports its outcome on Done.
	Inject(ctx context.Context, ref Reference) Injection
}

// Injection is an injected reference that is loading or loaded
type Injection interface {
	// Done receives exactly one value: nil on success or the load error
	Done() <-chan error
	// Remove detaches the reference from the environment.
	// A success arriving after Remove must not register anything.
	// Remove is idempotent.
	Remove()
	// Bytes returns the loaded content, nil before success or after Remove
	Bytes() []byte
}
