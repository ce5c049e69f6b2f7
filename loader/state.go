package loader

import "time"

// State represents the load state of a resource
type State string

const (
	// StateNotStarted represents a resource that has not been loaded yet (or was reset)
	StateNotStarted State = "not started"
	// StateLoading represents a resource whose candidate sources are being walked
	StateLoading State = "loading"
	// StateLoaded represents a resource that was loaded and verified
	StateLoaded State = "loaded"
	// StateFailed represents a resource for which every candidate source failed
	StateFailed State = "failed"
)

// Status is a snapshot of the load state of a resource
type Status struct {
	// Name is the resource name
	Name string `json:"name"`
	// State is the current load state
	State State `json:"state"`
	// Sources is the number of candidate sources configured
	Sources int `json:"sources"`
	// Attempts is the number of sources tried by the last load sequence
	Attempts int `json:"attempts"`
	// LoadedFrom is the URL of the source that won
	LoadedFrom string `json:"loaded_from,omitempty"`
	// LoadedAt is the timestamp for when the resource was loaded
	LoadedAt JSONTime `json:"loaded_at"`
	// Size is the size in bytes of the loaded resource
	Size int `json:"size"`
}

// loadState is owned by a Loader, one per resource name.
// Guarded by the loader mutex.
type loadState struct {
	resource   Resource
	state      State
	generation uint64
	// running counts load sequences in flight, including discarded ones
	running    int
	attempts   int
	loadedFrom string
	loadedAt   time.Time
	injection  Injection
}

func (s *loadState) status() Status {
	st := Status{
		Name:       s.resource.Name,
		State:      s.state,
		Sources:    len(s.resource.Sources),
		Attempts:   s.attempts,
		LoadedFrom: s.loadedFrom,
		LoadedAt:   JSONTime(s.loadedAt),
	}
	if s.injection != nil {
		st.Size = len(s.injection.Bytes())
	}
	return st
}

// reset moves the state back to StateNotStarted and tears down the active
// injection. Completions of the previous generation are discarded.
func (s *loadState) reset() {
	s.generation++
	s.state = StateNotStarted
	s.attempts = 0
	s.loadedFrom = ""
	s.loadedAt = time.Time{}
	if s.injection != nil {
		s.injection.Remove()
		s.injection = nil
	}
}
