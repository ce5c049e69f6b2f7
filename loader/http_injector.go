package loader

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"
)

// maxAssetSize caps the body size read from a single source
const maxAssetSize = 32 << 20

// NewHTTPInjector returns an injector fetching references over http(s) and
// file URLs into registry. A nil client uses a default client that also
// understands file:// URLs.
func NewHTTPInjector(client *http.Client, registry *Registry, origin string) *HTTPInjector {
	if client == nil {
		client = newClient()
	}

	return &HTTPInjector{
		client:   client,
		registry: registry,
		origin:   origin,
	}
}

// HTTPInjector is an Injector backed by an http client and a Registry
type HTTPInjector struct {
	client   *http.Client
	registry *Registry
	origin   string
}

func newClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: t}
}

// Inject starts fetching ref in the background
func (h *HTTPInjector) Inject(ctx context.Context, ref Reference) Injection {
	ctx, cancel := context.WithCancel(ctx)
	inj := &httpInjection{
		id:       ref.ID,
		registry: h.registry,
		cancel:   cancel,
		done:     make(chan error, 1),
		m:        &sync.Mutex{},
	}
	go inj.run(ctx, h, ref)

	return inj
}

type httpInjection struct {
	id       string
	registry *Registry
	cancel   context.CancelFunc
	done     chan error
	m        *sync.Mutex
	removed  bool
	body     []byte
}

func (i *httpInjection) run(ctx context.Context, h *HTTPInjector, ref Reference) {
	defer i.cancel()

	body, err := h.fetch(ctx, ref.Source)
	if err == nil {
		err = verifyIntegrity(ref.Source.Integrity, body)
	}
	if err == nil {
		i.m.Lock()
		if i.removed {
			err = errors.New("reference removed before it loaded")
		} else {
			i.body = body
			i.registry.add(ref, body)
		}
		i.m.Unlock()
	}

	i.done <- err
}

func (h *HTTPInjector) fetch(ctx context.Context, src Source) ([]byte, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid source URL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	cors := src.CrossOrigin != "" && u.Scheme != "file"
	if cors && h.origin != "" {
		req.Header.Set("Origin", h.origin)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}
	if cors {
		if err := checkCORS(resp, h.origin, src.CrossOrigin); err != nil {
			return nil, err
		}
	}

	body, err := ioutil.ReadAll(http.MaxBytesReader(nil, resp.Body, maxAssetSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read body")
	}

	return body, nil
}

// checkCORS applies the cross-origin policy to a response
func checkCORS(resp *http.Response, origin, mode string) error {
	allowed := resp.Header.Get("Access-Control-Allow-Origin")
	if mode == "use-credentials" {
		if origin == "" || allowed != origin {
			return errors.Errorf("cross-origin credentials not allowed for %q", origin)
		}
		if resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
			return errors.New("cross-origin credentials not allowed")
		}
		return nil
	}
	if allowed != "*" && (origin == "" || allowed != origin) {
		return errors.Errorf("cross-origin request not allowed for %q", origin)
	}

	return nil
}

func (i *httpInjection) Done() <-chan error {
	return i.done
}

func (i *httpInjection) Remove() {
	i.m.Lock()
	defer i.m.Unlock()
	if i.removed {
		return
	}
	i.removed = true
	i.cancel()
	i.body = nil
	i.registry.remove(i.id)
}

func (i *httpInjection) Bytes() []byte {
	i.m.Lock()
	defer i.m.Unlock()
	return i.body
}
