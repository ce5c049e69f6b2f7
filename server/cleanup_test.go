package server

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrisvdg/chartloader/memo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeBundles(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()

	files := map[string]time.Duration{
		"fresh.js":      0,
		"old.js":        -15 * time.Minute,
		"borderline.js": -601 * time.Second,
		"notes.txt":     -15 * time.Minute,
	}
	for name, age := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, ioutil.WriteFile(p, []byte("x"), 0644))
		mod := time.Now().Add(age)
		require.NoError(t, os.Chtimes(p, mod, mod))
	}

	s := &Server{
		c: &Config{
			CacheDir:         dir,
			BundleExpiration: 10 * time.Minute,
		},
		m: &sync.Mutex{},
	}
	s.purgeBundles()

	for name, kept := range map[string]bool{
		"fresh.js":      true,
		"old.js":        false,
		"borderline.js": false,
		"notes.txt":     true,
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.Equal(kept, err == nil, name)
	}
}

func TestPurgeBundlesDisabled(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "old.js")
	require.NoError(t, ioutil.WriteFile(p, []byte("x"), 0644))
	mod := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(p, mod, mod))

	s := &Server{c: &Config{CacheDir: dir}}
	s.purgeBundles()

	_, err := os.Stat(p)
	assert.NoError(t, err)
}

func TestCleanupLoop(t *testing.T) {
	s := &Server{
		c:    &Config{CleanupInterval: 5 * time.Millisecond},
		memo: memo.New(),
	}
	s.memo.Memoize("status", func() any { return 1 }, time.Millisecond)

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		s.cleanup(quit)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.memo.Len() == 0 }, time.Second, 5*time.Millisecond)
	close(quit)
	<-done
}
