// Package cache persists translations across runs so repeated texts are
// never sent to an endpoint twice. A Cache keeps everything in memory and
// writes through to a Store, which is either a JSONL file or PostgreSQL.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"rpgm-translator/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Entry is one cached translation. Key is derived from the language pair
// and the normalized source text, so entries for different pairs coexist
// in the same store.
type Entry struct {
	Key         string `json:"key"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// Store is the persistence backend of a Cache. Load returns entries in
// write order (later entries win on duplicate keys), Append adds entries
// without touching existing ones, and Save replaces the full set.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Append(ctx context.Context, entries []Entry) error
	Save(ctx context.Context, entries []Entry) error
}

// Key derives the cache key for a text under a language pair.
func Key(source, target, text string) string {
	return textutil.Hash(source + ":" + target + ":" + textutil.Normalize(text))[:32]
}

// Stats reports cache usage for one run.
type Stats struct {
	Entries int
	Pending int
	Hits    int64
	Misses  int64
}

// Cache is an in-memory translation cache bound to one language pair,
// backed by an optional Store.
type Cache struct {
	source string
	target string
	store  Store

	mu      sync.RWMutex
	entries map[string]Entry
	dirty   []Entry
	loadErr error

	hits   atomic.Int64
	misses atomic.Int64
}

// Open loads the store into memory and returns a ready cache. A nil store
// gives a memory-only cache. A store that fails to load is logged and the
// cache starts empty; writes are then refused so a file we could not read
// is never overwritten.
func Open(ctx context.Context, store Store, source, target string) *Cache {
	c := &Cache{
		source:  source,
		target:  target,
		store:   store,
		entries: make(map[string]Entry),
	}
	if store == nil {
		return c
	}

	entries, err := store.Load(ctx)
	if err != nil {
		c.loadErr = err
		log.Warn().Err(err).Msg("Translation cache unreadable, starting empty")
		return c
	}
	for _, e := range entries {
		c.entries[e.Key] = e
	}
	log.Info().Int("count", len(c.entries)).Msg("Loaded translation cache")
	return c
}

// Get returns the cached translation for a text, if any.
func (c *Cache) Get(text string) (string, bool) {
	key := Key(c.source, c.target, text)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return e.Translation, true
}

// Put records a translation. It becomes visible to Get immediately and is
// queued for the next Flush.
func (c *Cache) Put(text, translation string) {
	key := Key(c.source, c.target, text)
	e := Entry{
		Key:         key,
		Source:      c.source,
		Target:      c.target,
		Text:        textutil.Normalize(text),
		Translation: translation,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[key]; ok && cur.Translation == translation {
		return
	}
	c.entries[key] = e
	c.dirty = append(c.dirty, e)
}

// Flush appends queued entries to the store.
func (c *Cache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return c.loadErr
	}
	if len(c.dirty) == 0 {
		return nil
	}
	if err := c.store.Append(ctx, c.dirty); err != nil {
		return err
	}
	log.Debug().Int("count", len(c.dirty)).Msg("Flushed translation cache")
	c.dirty = nil
	return nil
}

// Compact rewrites the store with one entry per key, dropping the
// superseded duplicates an append-only file accumulates.
func (c *Cache) Compact(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return c.loadErr
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	all := make([]Entry, 0, len(keys))
	for _, k := range keys {
		all = append(all, c.entries[k])
	}
	if err := c.store.Save(ctx, all); err != nil {
		return err
	}
	c.dirty = nil
	log.Info().Int("count", len(all)).Msg("Compacted translation cache")
	return nil
}

// Clear deletes every entry for the cache's language pair. Entries for
// other pairs sharing the store are kept.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return c.loadErr
	}

	kept := make(map[string]Entry)
	for k, e := range c.entries {
		if e.Source != c.source || e.Target != c.target {
			kept[k] = e
		}
	}
	c.entries = kept
	c.dirty = nil
	if c.store == nil {
		return nil
	}

	keys := make([]string, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	all := make([]Entry, 0, len(keys))
	for _, k := range keys {
		all = append(all, kept[k])
	}
	return c.store.Save(ctx, all)
}

// Stats returns entry counts and the hit/miss tally since Open.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Pending: len(c.dirty),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
