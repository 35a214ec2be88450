// Package cache keeps the last aggregation result between requests.
package cache

import (
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/utils"
)

// DefaultTTL is how long a stored result is served before a refresh is due.
const DefaultTTL = 2 * time.Hour

type Entry[T any] struct {
	Data      T         `json:"data"`
	FetchedAt time.Time `json:"fetchedAt"`
	Version   int       `json:"version"`
}

type Cache[T any] struct {
	mu    sync.RWMutex
	entry *Entry[T]
	ttl   time.Duration
	now   func() time.Time
}

type option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

func WithTTL(ttl time.Duration) option {
	return func(opts *options) { opts.ttl = ttl }
}

func WithClock(now func() time.Time) option {
	return func(opts *options) { opts.now = now }
}

func New[T any](opts ...option) *Cache[T] {
	o := &options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Cache[T]{ttl: o.ttl, now: o.now}
}

func (c *Cache[T]) Get() (Entry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Entry[T]{}, false
	}
	return *c.entry, true
}

// Set stores data as the current entry and bumps the version.
func (c *Cache[T]) Set(data T) Entry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	version := 1
	if c.entry != nil {
		version = c.entry.Version + 1
	}
	c.entry = &Entry[T]{Data: data, FetchedAt: c.now(), Version: version}
	return *c.entry
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// Fresh reports whether an entry exists and is younger than the TTL.
func (c *Cache[T]) Fresh() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry != nil && c.now().Sub(c.entry.FetchedAt) < c.ttl
}

// Save writes the current entry as a JSON snapshot.
func (c *Cache[T]) Save(fs afero.Fs, path string) error {
	entry, ok := c.Get()
	if !ok {
		return xerrors.New("nothing to save")
	}
	if err := utils.NewFs(fs).WriteJSON(path, entry); err != nil {
		return xerrors.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load replaces the current entry with a snapshot written by Save.
func (c *Cache[T]) Load(fs afero.Fs, path string) (Entry[T], error) {
	var entry Entry[T]
	if err := utils.NewFs(fs).ReadJSON(path, &entry); err != nil {
		return Entry[T]{}, xerrors.Errorf("failed to load snapshot: %w", err)
	}
	c.mu.Lock()
	c.entry = &entry
	c.mu.Unlock()
	return entry, nil
}
