// Package hierarchy enumerates departments and the category directories found beneath them.
//
// The department set is fixed at construction. Categories are whatever subdirectories exist on
// disk, including ones created out-of-band. Listings are read from disk on every call unless a
// [Watcher] is attached, in which case they are cached per department and dropped whenever the
// watcher observes a change.
package hierarchy

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
	"github.com/brianalban07/spartanfiles.github.io/storage"
)

// Listing is one department together with its categories.
type Listing struct {
	Department string   `json:"department"`
	Categories []string `json:"categories"`
}

// Browser is safe for concurrent use.
type Browser struct {
	resolver *pathsafe.Resolver
	logger   *slog.Logger

	mu      sync.Mutex
	caching bool
	cache   map[string][]string
	gen     map[string]uint64
}

// NewBrowser returns a Browser over the departments known to resolver.
func NewBrowser(resolver *pathsafe.Resolver, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Browser{
		resolver: resolver,
		logger:   logger,
		cache:    make(map[string][]string),
		gen:      make(map[string]uint64),
	}
}

// Departments returns the configured departments in declared order. It never touches disk.
func (b *Browser) Departments() []string {
	return b.resolver.Departments()
}

// Categories returns the sorted names of the subdirectories of dept. A department whose
// directory does not exist yet has no categories; that is not an error.
func (b *Browser) Categories(dept string) ([]string, error) {
	dir, err := b.resolver.Department(dept)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.caching {
		if cached, ok := b.cache[dept]; ok {
			b.mu.Unlock()
			return slices.Clone(cached), nil
		}
	}
	gen := b.gen[dept]
	b.mu.Unlock()

	names, err := readCategories(dir)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	// An invalidation that raced with the read leaves the generation bumped; drop the result.
	if b.caching && b.gen[dept] == gen {
		b.cache[dept] = slices.Clone(names)
	}
	b.mu.Unlock()

	return names, nil
}

// Tree returns every department with its categories, in declared department order.
func (b *Browser) Tree() ([]Listing, error) {
	depts := b.Departments()
	out := make([]Listing, 0, len(depts))
	for _, d := range depts {
		cats, err := b.Categories(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Listing{Department: d, Categories: cats})
	}
	return out, nil
}

// Invalidate drops the cached listing of dept.
func (b *Browser) Invalidate(dept string) {
	b.mu.Lock()
	b.gen[dept]++
	delete(b.cache, dept)
	b.mu.Unlock()
}

func (b *Browser) setCaching(on bool) {
	b.mu.Lock()
	b.caching = on
	for d := range b.cache {
		b.gen[d]++
	}
	clear(b.cache)
	b.mu.Unlock()
}

func readCategories(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", storage.ErrStorage, err)
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		// Directories that could never be addressed through the resolver are not categories.
		if pathsafe.ValidateSegment(d.Name()) != nil {
			continue
		}
		names = append(names, d.Name())
	}
	slices.Sort(names)
	return names, nil
}
