package server

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/chrisvdg/chartloader/loader"
	"github.com/pkg/errors"
)

const (
	filePerm os.FileMode = 0644
	dirPerm  os.FileMode = 0700
)

// bundlePath returns the path of the bundled copy of a resource
func bundlePath(cacheDir, name string) string {
	return filepath.Join(cacheDir, name+".js")
}

// saveBundle writes a loaded resource to the cache dir so it can be used as
// the last resort source on the next start
func saveBundle(cacheDir, name string, data []byte) error {
	if cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(cacheDir, dirPerm); err != nil {
		return errors.Wrap(err, "failed to create cache dir")
	}

	// write and rename so a concurrent reader never sees a partial file
	tmp := bundlePath(cacheDir, name) + ".tmp"
	if err := ioutil.WriteFile(tmp, data, filePerm); err != nil {
		return errors.Wrap(err, "failed to write bundle file")
	}
	if err := os.Rename(tmp, bundlePath(cacheDir, name)); err != nil {
		return errors.Wrap(err, "failed to move bundle file in place")
	}

	return nil
}

// bundleSource returns a file source for the bundled copy of a resource if one exists
func bundleSource(cacheDir, name string) (loader.Source, bool) {
	if cacheDir == "" {
		return loader.Source{}, false
	}
	p, err := filepath.Abs(bundlePath(cacheDir, name))
	if err != nil {
		return loader.Source{}, false
	}
	if _, err := os.Stat(p); err != nil {
		return loader.Source{}, false
	}

	return loader.Source{URL: "file://" + filepath.ToSlash(p)}, true
}
