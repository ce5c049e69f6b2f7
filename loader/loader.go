package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the time a single source attempt is given before it is abandoned
const DefaultTimeout = 10 * time.Second

// Config represents a loader config
type Config struct {
	// Supported reports whether the environment can perform dynamic loads.
	// A nil Supported means always supported.
	Supported func() bool
	// Injector creates loadable references in the environment
	Injector Injector
	// Timeout for a single source attempt, DefaultTimeout when zero
	Timeout time.Duration
}

// New returns a new Loader instance with the provided resources registered
func New(c Config, resources ...Resource) (*Loader, error) {
	if c.Injector == nil {
		return nil, errors.New("no injector provided")
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	l := &Loader{
		c:      c,
		states: make(map[string]*loadState),
		m:      &sync.Mutex{},
		now:    time.Now,
	}
	for _, r := range resources {
		if err := l.Register(r); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Loader acquires external resources from ordered candidate sources.
// At most one load sequence per resource runs at a time and the outcome is
// kept until Reset.
type Loader struct {
	c      Config
	states map[string]*loadState
	m      *sync.Mutex
	sf     singleflight.Group
	now    func() time.Time
}

// Register adds a resource. Registering an existing name replaces its
// definition and resets its state.
func (l *Loader) Register(r Resource) error {
	if r.Name == "" {
		return errors.New("resource name is empty")
	}
	if len(r.Sources) == 0 {
		return errors.Errorf("resource %s has no sources", r.Name)
	}

	l.m.Lock()
	defer l.m.Unlock()

	if st, ok := l.states[r.Name]; ok {
		st.reset()
		st.resource = r
		return nil
	}
	l.states[r.Name] = &loadState{
		resource: r,
		state:    StateNotStarted,
	}

	return nil
}

// EnsureLoaded returns true once the named resource is confirmed available and
// false when it cannot be loaded. Concurrent callers share one load sequence.
// ctx only bounds how long this caller waits, the load itself keeps running.
func (l *Loader) EnsureLoaded(ctx context.Context, name string) bool {
	if l.c.Supported != nil && !l.c.Supported() {
		log.WithError(ErrEnvironmentUnsupported).Debugf("not loading %s", name)
		return false
	}

	l.m.Lock()
	st, ok := l.states[name]
	if !ok {
		l.m.Unlock()
		log.WithError(ErrUnknownResource).Errorf("cannot load %s", name)
		return false
	}
	res := st.resource
	state := st.state
	gen := st.generation
	running := st.running
	l.m.Unlock()

	switch state {
	case StateLoaded:
		if res.verify() {
			return true
		}
		log.Warnf("%s was loaded but is no longer present, reset required", name)
		return false
	case StateFailed:
		return false
	}

	// Presence only counts as an out of band load when no sequence of any
	// generation is running, a sequence discarded by a reset may still have its
	// reference in the environment. The state is left alone: Loaded always
	// owns an injection.
	if state == StateNotStarted && running == 0 && res.present() {
		log.Debugf("%s already present", name)
		return true
	}

	key := fmt.Sprintf("%s@%d", name, gen)
	ch := l.sf.DoChan(key, func() (interface{}, error) {
		return l.load(name, gen), nil
	})

	select {
	case r := <-ch:
		return r.Val.(bool)
	case <-ctx.Done():
		log.WithError(ctx.Err()).Debugf("stopped waiting for %s", name)
		return false
	}
}

// load walks the candidate sources of a resource in order.
// The outcome is only recorded when the generation did not change meanwhile.
func (l *Loader) load(name string, gen uint64) bool {
	l.m.Lock()
	st := l.states[name]
	if st.generation != gen {
		l.m.Unlock()
		return false
	}
	switch st.state {
	case StateLoaded:
		l.m.Unlock()
		return true
	case StateFailed:
		l.m.Unlock()
		return false
	}
	st.state = StateLoading
	st.attempts = 0
	st.running++
	res := st.resource
	l.m.Unlock()
	defer l.finished(st)

	for i, src := range res.Sources {
		inj, err := l.attempt(res, src)

		l.m.Lock()
		if st.generation != gen {
			l.m.Unlock()
			if inj != nil {
				inj.Remove()
			}
			log.Debugf("discarding %s load, state was reset", name)
			return false
		}
		st.attempts = i + 1
		if err != nil {
			l.m.Unlock()
			log.WithError(err).Debugf("candidate %d for %s failed", i+1, name)
			continue
		}
		st.state = StateLoaded
		st.injection = inj
		st.loadedFrom = src.URL
		st.loadedAt = l.now()
		l.m.Unlock()

		log.Infof("%s loaded from %s (%s)", name, src.URL, humanize.Bytes(uint64(len(inj.Bytes()))))
		return true
	}

	l.m.Lock()
	defer l.m.Unlock()
	if st.generation != gen {
		return false
	}
	st.state = StateFailed
	log.WithError(ErrAllSourcesExhausted).Warnf("%s unavailable after %d attempts", name, st.attempts)

	return false
}

// finished marks the end of a load sequence, whatever its generation
func (l *Loader) finished(st *loadState) {
	l.m.Lock()
	defer l.m.Unlock()
	st.running--
}

// attempt injects a single candidate and races its completion against the timeout.
// The losing side is torn down before returning.
func (l *Loader) attempt(res Resource, src Source) (Injection, error) {
	timeout := res.Timeout
	if timeout <= 0 {
		timeout = l.c.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ref := Reference{
		ID:       generateID(16),
		Resource: res.Name,
		Source:   src,
	}
	inj := l.c.Injector.Inject(ctx, ref)

	select {
	case err := <-inj.Done():
		if err != nil {
			inj.Remove()
			return nil, errors.Wrapf(ErrSourceUnavailable, "%s: %v", src.URL, err)
		}
	case <-ctx.Done():
		inj.Remove()
		return nil, errors.Wrapf(ErrSourceUnavailable, "%s: timed out after %s", src.URL, timeout)
	}

	if !res.verify() {
		inj.Remove()
		return nil, errors.Wrapf(ErrSourceUnavailable, "%s: loaded but %s is not present", src.URL, res.Name)
	}

	return inj, nil
}

// Asset returns the content of a loaded resource.
// Calling it before the resource is loaded is a programming error.
func (l *Loader) Asset(name string) ([]byte, error) {
	l.m.Lock()
	defer l.m.Unlock()

	st, ok := l.states[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownResource, name)
	}
	if st.state != StateLoaded || st.injection == nil {
		return nil, errors.Wrapf(ErrNotYetLoaded, "%s is %s", name, st.state)
	}

	return st.injection.Bytes(), nil
}

// MustAsset is like Asset but panics when the resource is not loaded
func (l *Loader) MustAsset(name string) []byte {
	b, err := l.Asset(name)
	if err != nil {
		panic(err)
	}
	return b
}

// State returns the status of a resource
func (l *Loader) State(name string) (Status, error) {
	l.m.Lock()
	defer l.m.Unlock()

	st, ok := l.states[name]
	if !ok {
		return Status{}, errors.Wrap(ErrUnknownResource, name)
	}

	return st.status(), nil
}

// States returns the status of every registered resource, sorted by name
func (l *Loader) States() []Status {
	l.m.Lock()
	defer l.m.Unlock()

	res := make([]Status, 0, len(l.states))
	for _, st := range l.states {
		res = append(res, st.status())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })

	return res
}

// ResetResource moves a single resource back to StateNotStarted
func (l *Loader) ResetResource(name string) error {
	l.m.Lock()
	defer l.m.Unlock()

	st, ok := l.states[name]
	if !ok {
		return errors.Wrap(ErrUnknownResource, name)
	}
	st.reset()
	log.Debugf("%s reset", name)

	return nil
}

// Reset moves every resource back to StateNotStarted.
// Loads in flight complete but their outcome is discarded.
func (l *Loader) Reset() {
	l.m.Lock()
	defer l.m.Unlock()

	for _, st := range l.states {
		st.reset()
	}
	log.Debug("loader reset")
}
