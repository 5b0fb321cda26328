package cache

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() Entry {
	header := http.Header{}
	header.Set("Content-Type", "text/html")
	header.Add("Link", "</a.css>; rel=preload")
	header.Add("Link", "</b.js>; rel=preload")
	// stored as given, not canonicalised or trimmed
	header["x-lower"] = []string{"v"}
	header["X-Pad"] = []string{"  padded  "}
	return Entry{
		Status:   200,
		Header:   header,
		Body:     []byte(`<input type="hidden" name="_token" value="abc123">`),
		StoredAt: time.Date(2022, 10, 20, 11, 44, 49, 0, time.UTC),
	}
}

// testStore runs the store contract against a fresh store.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		s := newStore(t)
		has, err := s.Has(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, has)
		_, err = s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		want := testEntry()
		require.NoError(t, s.Put(ctx, "key", want, time.Minute))

		has, err := s.Has(ctx, "key")
		require.NoError(t, err)
		assert.True(t, has)

		got, err := s.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Header, got.Header)
		assert.Equal(t, want.Body, got.Body)
		assert.True(t, want.StoredAt.Equal(got.StoredAt), "stored at %s", got.StoredAt)
	})

	t.Run("overwrite", func(t *testing.T) {
		s := newStore(t)
		first := testEntry()
		second := testEntry()
		second.Body = []byte("second")
		require.NoError(t, s.Put(ctx, "key", first, time.Minute))
		require.NoError(t, s.Put(ctx, "key", second, time.Minute))

		got, err := s.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, "second", string(got.Body))
	})

	t.Run("flush", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "a", testEntry(), time.Minute))
		require.NoError(t, s.Put(ctx, "b", testEntry(), time.Minute))
		require.NoError(t, s.Flush(ctx))

		for _, key := range []string{"a", "b"} {
			has, err := s.Has(ctx, key)
			require.NoError(t, err)
			assert.False(t, has)
			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)
		}
	})
}

func TestSQLiteCache(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		s, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteCacheExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "key", testEntry(), time.Minute))
	now = now.Add(time.Minute)

	has, err := s.Has(ctx, "key")
	require.NoError(t, err)
	assert.False(t, has)
	_, err = s.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCacheClosed(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Has(ctx, "key")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Put(ctx, "key", testEntry(), time.Minute), ErrUnavailable)
	assert.ErrorIs(t, s.Flush(ctx), ErrUnavailable)
}

func TestMemCache(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		return NewMemCache(10)
	})
}

func TestMemCacheExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemCache(10)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "key", testEntry(), time.Second))
	now = now.Add(time.Second)

	has, err := s.Has(ctx, "key")
	require.NoError(t, err)
	assert.False(t, has)
	_, err = s.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestMemCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemCache(2)
	require.NoError(t, s.Put(ctx, "a", testEntry(), time.Minute))
	require.NoError(t, s.Put(ctx, "b", testEntry(), time.Minute))
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "c", testEntry(), time.Minute))

	has, _ := s.Has(ctx, "b")
	assert.False(t, has)
	has, _ = s.Has(ctx, "a")
	assert.True(t, has)
}

func TestMemCacheIsolatesEntries(t *testing.T) {
	ctx := context.Background()
	s := NewMemCache(10)
	entry := testEntry()
	require.NoError(t, s.Put(ctx, "key", entry, time.Minute))
	entry.Body[0] = 'X'
	entry.Header.Set("Content-Type", "changed")

	got, err := s.Get(ctx, "key")
	require.NoError(t, err)
	got.Header.Set("X-Other", "1")
	got, err = s.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, testEntry().Body, got.Body)
	assert.Equal(t, testEntry().Header, got.Header)
}
