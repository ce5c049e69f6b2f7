package loader

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartScript = "(function(g){g.Chart=function(){}})(this);"

func newCDN(t *testing.T, body string, hits *int32) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		switch r.URL.Path {
		case "/chart.js":
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Write([]byte(body))
		case "/slow.js":
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
				return
			}
			w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newHTTPLoader(t *testing.T, registry *Registry, srcs ...Source) *Loader {
	l, err := New(Config{
		Injector: NewHTTPInjector(nil, registry, "https://app.example"),
		Timeout:  200 * time.Millisecond,
	}, Resource{
		Name:    "chart",
		Sources: srcs,
		Present: SymbolPresent(registry, "chart", "Chart"),
	})
	require.NoError(t, err)
	return l
}

func TestHTTPInjectorLoads(t *testing.T) {
	assert := assert.New(t)
	cdn := newCDN(t, chartScript, nil)
	registry := NewRegistry()
	l := newHTTPLoader(t, registry,
		Source{URL: cdn.URL + "/missing.js"},
		Source{URL: cdn.URL + "/chart.js", Integrity: Integrity([]byte(chartScript)), CrossOrigin: "anonymous"},
	)

	assert.True(l.EnsureLoaded(context.Background(), "chart"))
	assert.Equal(1, registry.Len())
	assert.Equal([]byte(chartScript), l.MustAsset("chart"))

	st, _ := l.State("chart")
	assert.Equal(cdn.URL+"/chart.js", st.LoadedFrom)
	assert.Equal(2, st.Attempts)

	l.Reset()
	assert.Equal(0, registry.Len())
}

func TestHTTPInjectorIntegrityMismatch(t *testing.T) {
	assert := assert.New(t)
	primary := newCDN(t, "/* tampered */", nil)
	fallback := newCDN(t, chartScript, nil)
	registry := NewRegistry()
	l := newHTTPLoader(t, registry,
		Source{URL: primary.URL + "/chart.js", Integrity: Integrity([]byte(chartScript))},
		Source{URL: fallback.URL + "/chart.js"},
	)

	assert.True(l.EnsureLoaded(context.Background(), "chart"))
	st, _ := l.State("chart")
	assert.Equal(fallback.URL+"/chart.js", st.LoadedFrom)
	assert.Equal(1, registry.Len())
}

func TestHTTPInjectorEmptyScript(t *testing.T) {
	assert := assert.New(t)
	cdn := newCDN(t, "", nil)
	registry := NewRegistry()
	l := newHTTPLoader(t, registry, Source{URL: cdn.URL + "/chart.js"})

	assert.False(l.EnsureLoaded(context.Background(), "chart"))
	assert.Equal(0, registry.Len())
}

func TestHTTPInjectorTimeout(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	cdn := newCDN(t, chartScript, &hits)
	registry := NewRegistry()
	l := newHTTPLoader(t, registry,
		Source{URL: cdn.URL + "/slow.js"},
		Source{URL: cdn.URL + "/chart.js"},
	)

	start := time.Now()
	assert.True(l.EnsureLoaded(context.Background(), "chart"))
	assert.True(time.Since(start) < time.Second)
	assert.Equal(int32(2), atomic.LoadInt32(&hits))
	assert.Equal(1, registry.Len())
}

func TestHTTPInjectorCrossOrigin(t *testing.T) {
	assert := assert.New(t)
	cdn := newCDN(t, chartScript, nil)
	registry := NewRegistry()
	l := newHTTPLoader(t, registry, Source{URL: cdn.URL + "/chart.js", CrossOrigin: "use-credentials"})

	// the CDN only allows anonymous requests
	assert.False(l.EnsureLoaded(context.Background(), "chart"))
	assert.Equal(0, registry.Len())
}

func TestHTTPInjectorFileSource(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "chart.js")
	require.NoError(t, ioutil.WriteFile(file, []byte(chartScript), 0644))
	registry := NewRegistry()
	l := newHTTPLoader(t, registry,
		Source{URL: "http://127.0.0.1:1/chart.js"},
		Source{URL: "file://" + filepath.ToSlash(file), CrossOrigin: "anonymous"},
	)

	assert.True(l.EnsureLoaded(context.Background(), "chart"))
	assert.Equal([]byte(chartScript), l.MustAsset("chart"))
}

func TestResetDuringVerifyIgnoresStaleScript(t *testing.T) {
	assert := assert.New(t)
	cdn := newCDN(t, chartScript, nil)
	registry := NewRegistry()
	symbol := SymbolPresent(registry, "chart", "Chart")

	var l *Loader
	var reset int32
	second := make(chan bool, 1)
	present := func() bool {
		ok := symbol()
		// reset while the first script is registered but not yet accepted
		if ok && atomic.CompareAndSwapInt32(&reset, 0, 1) {
			require.NoError(t, l.ResetResource("chart"))
			second <- l.EnsureLoaded(context.Background(), "chart")
		}
		return ok
	}
	l, err := New(Config{
		Injector: NewHTTPInjector(nil, registry, "https://app.example"),
		Timeout:  time.Second,
	}, Resource{Name: "chart", Sources: []Source{{URL: cdn.URL + "/chart.js"}}, Present: present})
	require.NoError(t, err)

	assert.False(l.EnsureLoaded(context.Background(), "chart"))
	assert.True(<-second)

	st, _ := l.State("chart")
	assert.Equal(StateLoaded, st.State)
	assert.Equal(1, registry.Len())
	assert.Equal([]byte(chartScript), l.MustAsset("chart"))
	assert.True(l.EnsureLoaded(context.Background(), "chart"))
}

func TestRegistryDefines(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()
	present := SymbolPresent(r, "chart", "Chart")
	assert.False(present())

	r.add(Reference{ID: "1", Resource: "other", Source: Source{URL: "x"}}, []byte(chartScript))
	assert.False(present())

	r.add(Reference{ID: "2", Resource: "chart", Source: Source{URL: "y"}}, []byte(chartScript))
	assert.True(present())

	r.remove("2")
	assert.False(present())
	assert.Equal(1, r.Len())
}

func TestRegistryDefinesSymbol(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{chartScript, true},
		{"var Chart = function(){};", true},
		{"let Chart=1", true},
		{"function Chart(){}", true},
		{"class Chart{}", true},
		{"(this.Chart = factory())", true},
		{"<!DOCTYPE html><html><body>Chart.js not found</body></html>", false},
		{"  <html><script>window.Chart = 1</script></html>", false},
		{"if (window.Chart == null) { throw 1 }", false},
		{"x.Chart === undefined", false},
		{"// needs Chart", false},
		{"var ChartHelpers = {}", false},
		{"window.MyChart = 1", false},
	}

	for _, tc := range tests {
		r := NewRegistry()
		r.add(Reference{ID: "1", Resource: "chart", Source: Source{URL: "x"}}, []byte(tc.body))
		assert.Equal(t, tc.want, r.Defines("chart", "Chart"), tc.body)
	}
}
