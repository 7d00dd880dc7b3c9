package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizes(t *testing.T) {
	assert.Equal(t, Key("ja", "en", "Hello\nWorld"), Key("ja", "en", "  Hello\r\nWorld \n"))
	assert.NotEqual(t, Key("ja", "en", "Hello"), Key("ja", "fr", "Hello"))
	assert.NotEqual(t, Key("ja", "en", "Hello"), Key("zh", "en", "Hello"))
	assert.Len(t, Key("ja", "en", "Hello"), 32)
}

func TestMemoryOnlyCache(t *testing.T) {
	ctx := context.Background()
	c := Open(ctx, nil, "ja", "en")

	_, ok := c.Get("こんにちは")
	assert.False(t, ok)

	c.Put("こんにちは", "Hello")
	got, ok := c.Get("こんにちは")
	require.True(t, ok)
	assert.Equal(t, "Hello", got)

	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Compact(ctx))

	st := c.Stats()
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	store := NewFileStore(path)

	c := Open(ctx, store, "ja", "en")
	c.Put("こんにちは", "Hello")
	c.Put("さようなら", "Goodbye")
	require.NoError(t, c.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(`{"version":1}`)))
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")), "header plus one line per entry")

	c2 := Open(ctx, store, "ja", "en")
	got, ok := c2.Get("こんにちは")
	require.True(t, ok)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, 2, c2.Stats().Entries)

	// A different pair never sees these entries.
	c3 := Open(ctx, store, "zh", "en")
	_, ok = c3.Get("こんにちは")
	assert.False(t, ok)
}

func TestFileStoreLastEntryWins(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	store := NewFileStore(path)

	c := Open(ctx, store, "ja", "en")
	c.Put("はい", "Yeah")
	require.NoError(t, c.Flush(ctx))
	c.Put("はい", "Yes")
	require.NoError(t, c.Flush(ctx))

	c2 := Open(ctx, store, "ja", "en")
	got, ok := c2.Get("はい")
	require.True(t, ok)
	assert.Equal(t, "Yes", got)
	assert.Equal(t, 1, c2.Stats().Entries)
}

func TestFileStorePartialLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	store := NewFileStore(path)

	c := Open(ctx, store, "ja", "en")
	c.Put("一", "one")
	c.Put("二", "two")
	require.NoError(t, c.Flush(ctx))

	// Simulate a crash mid-append: a torn line followed by a valid one.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"key\":\"deadbeef\",\"trunc\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, store.Append(ctx, []Entry{{
		Key: Key("ja", "en", "三"), Source: "ja", Target: "en", Text: "三", Translation: "three",
	}}))

	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "reading stops at the corrupt line")
	assert.Equal(t, "one", entries[0].Translation)
	assert.Equal(t, "two", entries[1].Translation)
}

func TestFileStoreBadHeaderRefusesWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not a cache file\n"), 0o644))

	store := NewFileStore(path)
	_, err := store.Load(ctx)
	require.Error(t, err)

	c := Open(ctx, store, "ja", "en")
	assert.Equal(t, 0, c.Stats().Entries)

	c.Put("一", "one")
	assert.Error(t, c.Flush(ctx), "an unreadable file must not be written over")
	assert.Error(t, c.Compact(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not a cache file\n", string(data))
}

func TestCompactFoldsDuplicates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	store := NewFileStore(path)

	c := Open(ctx, store, "ja", "en")
	c.Put("はい", "Yeah")
	require.NoError(t, c.Flush(ctx))
	c.Put("はい", "Yes")
	c.Put("いいえ", "No")
	require.NoError(t, c.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 4, bytes.Count(data, []byte("\n")))

	require.NoError(t, c.Compact(ctx))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")), "one line per key after compaction")

	c2 := Open(ctx, store, "ja", "en")
	got, ok := c2.Get("はい")
	require.True(t, ok)
	assert.Equal(t, "Yes", got)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	store := NewFileStore(path)

	other := Open(ctx, store, "ja", "fr")
	other.Put("はい", "Oui")
	require.NoError(t, other.Flush(ctx))

	c := Open(ctx, store, "ja", "en")
	c.Put("はい", "Yes")
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Clear(ctx))

	_, ok := c.Get("はい")
	assert.False(t, ok)

	c2 := Open(ctx, store, "ja", "en")
	_, ok = c2.Get("はい")
	assert.False(t, ok, "clear survives a reopen")

	fr := Open(ctx, store, "ja", "fr")
	got, ok := fr.Get("はい")
	require.True(t, ok, "other language pairs keep their entries")
	assert.Equal(t, "Oui", got)
}

func TestFileStoreCreatesDirectories(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.jsonl")
	store := NewFileStore(path)

	require.NoError(t, store.Append(ctx, []Entry{{
		Key: Key("ja", "en", "一"), Source: "ja", Target: "en", Text: "一", Translation: "one",
	}}))
	entries, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
