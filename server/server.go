package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chrisvdg/chartloader/loader"
	"github.com/chrisvdg/chartloader/memo"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	reloadDelay         = 500 * time.Millisecond
	degradedLogInterval = time.Minute
)

// New creates a new server instance
func New(c *Config) (*Server, error) {
	resources, err := LoadResources(c.ResourceFile)
	if err != nil {
		return nil, err
	}

	registry := loader.NewRegistry()
	l, err := loader.New(loader.Config{
		Supported: func() bool { return !c.Offline },
		Injector:  loader.NewHTTPInjector(nil, registry, c.Origin),
		Timeout:   c.LoadTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create loader")
	}

	s := &Server{
		c:        c,
		loader:   l,
		registry: registry,
		memo:     memo.New(memo.WithTTL(c.StatusTTL)),
		bundled:  make(map[string]bool),
		m:        &sync.Mutex{},
	}
	s.degraded = memo.Throttle(func(name string) {
		log.Warnf("%s unavailable, serving degraded response", name)
	}, degradedLogInterval)
	s.reloader = memo.Debounce(func(reason string) {
		log.Infof("Reloading resources (%s)", reason)
		if err := s.Reload(); err != nil {
			log.Error(err)
		}
	}, reloadDelay)

	err = s.register(resources)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Server represents a server instance
type Server struct {
	c        *Config
	loader   *loader.Loader
	registry *loader.Registry
	memo     *memo.Cache
	degraded *memo.Throttled[string]
	reloader *memo.Debounced[string]
	names    []string
	bundled  map[string]bool
	m        *sync.Mutex
}

// register hands the configured resources to the loader, with the bundled
// copy of each as last source when there is one
func (s *Server) register(resources Resources) error {
	names := []string{}
	for _, r := range resources.Resources {
		res := loader.Resource{
			Name:    r.Name,
			Sources: r.sources(),
			Timeout: r.Timeout,
		}
		if src, ok := bundleSource(s.c.CacheDir, r.Name); ok {
			res.Sources = append(res.Sources, src)
		}
		if r.Symbol != "" {
			res.Present = loader.SymbolPresent(s.registry, r.Name, r.Symbol)
		}
		err := s.loader.Register(res)
		if err != nil {
			return errors.Wrapf(err, "failed to register %s", r.Name)
		}
		names = append(names, r.Name)
	}

	s.m.Lock()
	s.names = names
	s.bundled = make(map[string]bool)
	s.m.Unlock()

	return nil
}

// Reload reads the resource file again and resets every resource it names
func (s *Server) Reload() error {
	resources, err := LoadResources(s.c.ResourceFile)
	if err != nil {
		return err
	}
	err = s.register(resources)
	if err != nil {
		return err
	}
	s.memo.Clear()

	return nil
}

// RequestReload schedules a Reload, bursts of requests result in a single reload
func (s *Server) RequestReload(reason string) {
	s.reloader.Call(reason)
}

// Preload loads every configured resource
func (s *Server) Preload(ctx context.Context) {
	s.m.Lock()
	names := append([]string{}, s.names...)
	s.m.Unlock()

	wg := &sync.WaitGroup{}
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.ensure(ctx, name)
		}(name)
	}
	wg.Wait()
}

// ensure loads a resource and keeps a bundled copy of it
func (s *Server) ensure(ctx context.Context, name string) bool {
	if !s.loader.EnsureLoaded(ctx, name) {
		s.degraded.Call(name)
		return false
	}
	s.persist(name)

	return true
}

func (s *Server) persist(name string) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.bundled[name] {
		return
	}

	data, err := s.loader.Asset(name)
	if err != nil {
		log.Errorf("Failed to get %s for bundling: %s", name, err)
		return
	}
	err = saveBundle(s.c.CacheDir, name, data)
	if err != nil {
		log.Errorf("Failed to bundle %s: %s", name, err)
		return
	}
	s.bundled[name] = true
}

// reset resets a single resource, or all of them when name is empty
func (s *Server) reset(name string) error {
	if name == "" {
		s.loader.Reset()
	} else if err := s.loader.ResetResource(name); err != nil {
		return err
	}

	s.m.Lock()
	if name == "" {
		s.bundled = make(map[string]bool)
	} else {
		delete(s.bundled, name)
	}
	s.m.Unlock()
	s.memo.Clear()

	return nil
}

// Router returns the http handler of the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	h := newHandlers(s)

	r.HandleFunc("/assets/{name}", h.AssetHandler).Methods("GET", "HEAD")
	r.HandleFunc("/status", h.StatusHandler).Methods("GET")
	r.HandleFunc("/status/{name}", h.ResourceStatusHandler).Methods("GET")
	r.HandleFunc("/reset", h.ResetHandler).Methods("POST")
	r.HandleFunc("/reset/{name}", h.ResetHandler).Methods("POST")

	return r
}

// ListenAndServe listens for new requests and serves them
func (s *Server) ListenAndServe() {
	r := s.Router()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan struct{})
	defer close(quit)
	go s.cleanup(quit)
	go s.Preload(ctx)

	tlsEnabled := s.c.TLS != nil && s.c.TLS.CertFile != "" && s.c.TLS.KeyFile != ""
	if !s.c.TLSOnly {
		go listenAndServe(ctx, cancel, s.c.ListenAddr, r)
	}

	if tlsEnabled {
		go listenAndServeTLS(ctx, cancel, s.c.TLSListenAddr, s.c.TLS, r)
	}

	<-ctx.Done()
}

// listenAndServe serves a plain http webserver
func listenAndServe(ctx context.Context, cancel func(), addr string, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("http server listening on: http://%s", addrStr)
	log.Error(http.ListenAndServe(addr, handler))
}

// listenAndServeTLS serves a tls webserver
func listenAndServeTLS(ctx context.Context, cancel func(), addr string, tls *TLSConfig, handler http.Handler) {
	defer cancel()
	addrStr := getAddrString(addr)
	log.Infof("https server listening on: https://%s", addrStr)
	log.Error(http.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile, handler))
}

func getAddrString(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = fmt.Sprintf("0.0.0.0%s", addr)
	}
	return addr
}
