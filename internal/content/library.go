package content

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
)

// Source opens content documents by name. storage.FSStore satisfies it.
type Source interface {
	Get(key string) (io.ReadCloser, error)
}

// Library loads each content document once and caches the normalized
// catalog.
type Library struct {
	src Source

	mu       sync.Mutex
	catalogs map[string]*Catalog
}

func NewLibrary(src Source) *Library {
	return &Library{src: src, catalogs: map[string]*Catalog{}}
}

// Catalog returns the normalized catalog stored under name.
func (l *Library) Catalog(name string) (*Catalog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.catalogs[name]; ok {
		return c, nil
	}
	rc, err := l.src.Get(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	c, err := Load(rc)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	l.catalogs[name] = c
	return c, nil
}

// Put installs an already parsed catalog under name.
func (l *Library) Put(name string, c *Catalog) {
	l.mu.Lock()
	l.catalogs[name] = c
	l.mu.Unlock()
}

// ShuffleOrder returns a random permutation of 0..n-1, used to present
// topics one by one in random order.
func ShuffleOrder(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
