package server

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

func (s *Server) cleanup(quit <-chan struct{}) {
	if s.c.CleanupInterval == 0 {
		return
	}
	ticker := time.NewTicker(s.c.CleanupInterval)
	for {
		select {
		case <-ticker.C:
			s.sweepStatus()
			s.purgeBundles()
		case <-quit:
			ticker.Stop()
			return
		}
	}
}

func (s *Server) sweepStatus() {
	n := s.memo.SweepExpired()
	if n > 0 {
		log.Debugf("Removed %d expired memo entries", n)
	}
}

// purgeBundles deletes bundled copies older than the bundle expiration
func (s *Server) purgeBundles() {
	if s.c.BundleExpiration == 0 || s.c.CacheDir == "" {
		return
	}
	log.Debug("Started deleting expired bundle files")

	files, err := ioutil.ReadDir(s.c.CacheDir)
	if err != nil {
		log.Errorf("Failed to list cache dir files: %s", err)
		return
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".js") {
			continue
		}
		if time.Since(f.ModTime()) < s.c.BundleExpiration {
			continue
		}
		err = os.Remove(filepath.Join(s.c.CacheDir, f.Name()))
		if err != nil {
			log.Errorf("Failed to delete file %s: %s", f.Name(), err)
			continue
		}
		log.Debugf("Bundle %s has expired", f.Name())
	}

	log.Debug("Finished deleting expired bundle files")
}
