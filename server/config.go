package server

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/chrisvdg/chartloader/loader"
	"github.com/pkg/errors"
)

// Config represents a server config
type Config struct {
	ListenAddr      string
	TLSListenAddr   string
	TLSOnly         bool
	TLS             *TLSConfig
	Verbose         bool
	ResourceFile    string
	CacheDir        string
	Origin          string
	Offline         bool
	LoadTimeout     time.Duration
	StatusTTL       time.Duration
	CleanupInterval time.Duration
	// BundleExpiration is the age after which bundled copies are deleted, 0 keeps them
	BundleExpiration time.Duration
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	KeyFile  string
	CertFile string
}

// Resources is the layout of the resource file
type Resources struct {
	Resources []ResourceConfig `toml:"resource"`
}

// ResourceConfig describes a single external library
type ResourceConfig struct {
	Name string `toml:"name"`
	// Symbol is the global the library defines once executed
	Symbol  string         `toml:"symbol"`
	Timeout time.Duration  `toml:"timeout,omitempty"`
	Sources []SourceConfig `toml:"source"`
}

// SourceConfig is a candidate source of a library
type SourceConfig struct {
	URL         string `toml:"url"`
	Integrity   string `toml:"integrity,omitempty"`
	CrossOrigin string `toml:"crossorigin,omitempty"`
}

// DefaultResources returns the chart library served when no resource file exists
func DefaultResources() Resources {
	return Resources{
		Resources: []ResourceConfig{
			{
				Name:   "chart",
				Symbol: "Chart",
				Sources: []SourceConfig{
					{URL: "https://cdn.jsdelivr.net/npm/chart.js@4.4.1/dist/chart.umd.js", CrossOrigin: "anonymous"},
					{URL: "https://unpkg.com/chart.js@4.4.1/dist/chart.umd.js", CrossOrigin: "anonymous"},
					{URL: "https://cdnjs.cloudflare.com/ajax/libs/Chart.js/4.4.1/chart.umd.js", CrossOrigin: "anonymous"},
				},
			},
		},
	}
}

// LoadResources reads the resource file, returning defaults if it doesn't exist
func LoadResources(path string) (Resources, error) {
	if path == "" {
		return DefaultResources(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultResources(), nil
		}
		return Resources{}, errors.Wrap(err, "failed to read resource file")
	}

	var res Resources
	if err := toml.Unmarshal(data, &res); err != nil {
		return Resources{}, errors.Wrap(err, "failed to parse resource file")
	}
	for _, r := range res.Resources {
		if r.Name == "" {
			return Resources{}, errors.New("resource without name in resource file")
		}
		if len(r.Sources) == 0 {
			return Resources{}, errors.Errorf("resource %s has no sources", r.Name)
		}
	}

	return res, nil
}

// sources converts the configured sources to loader sources
func (r ResourceConfig) sources() []loader.Source {
	res := make([]loader.Source, 0, len(r.Sources))
	for _, s := range r.Sources {
		res = append(res, loader.Source{
			URL:         s.URL,
			Integrity:   s.Integrity,
			CrossOrigin: s.CrossOrigin,
		})
	}
	return res
}
