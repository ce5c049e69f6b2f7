package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrisvdg/chartloader/loader"
	"github.com/chrisvdg/chartloader/memo"
	"github.com/chrisvdg/chartloader/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	listAddr := pflag.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := pflag.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := pflag.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := pflag.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := pflag.BoolP("tlsonly", "s", false, "Only serve TLS")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	resourceFile := pflag.StringP("resources", "r", "resources.toml", "Resource definition file (defaults are used when missing)")
	cacheDir := pflag.StringP("cachedir", "d", filepath.Join(os.TempDir(), "chartloader"), "Directory for bundled copies of loaded resources")
	origin := pflag.StringP("origin", "o", "", "Origin sent on cross-origin source requests")
	offline := pflag.Bool("offline", false, "Do not load resources from remote sources")
	loadTimeout := pflag.Duration("loadtimeout", loader.DefaultTimeout, "Timeout of a single source attempt")
	statusTTL := pflag.Duration("statusttl", memo.DefaultTTL, "How long status responses are memoized")
	cleanupInterval := pflag.Duration("cleanupinterval", 0, "Interval of expired memo and bundle cleanup (0 disables)")
	bundleExpiration := pflag.Duration("bundleexpiration", 0, "Age after which bundled copies are deleted (0 keeps them)")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	c := &server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose:          *verbose,
		ResourceFile:     *resourceFile,
		CacheDir:         *cacheDir,
		Origin:           *origin,
		Offline:          *offline,
		LoadTimeout:      *loadTimeout,
		StatusTTL:        *statusTTL,
		CleanupInterval:  *cleanupInterval,
		BundleExpiration: *bundleExpiration,
	}

	s, err := server.New(c)
	if err != nil {
		log.Fatal(err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			s.RequestReload("SIGHUP")
		}
	}()

	s.ListenAndServe()
}
