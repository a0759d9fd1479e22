package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "kv.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rds, err := OpenRedis(context.Background(), mr.Addr(), "", 0, "test:")
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
		"redis":  rds,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "token")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, map[string]string{"token": "abc", "user": `{"_id":"u1"}`}))
			v, err := s.Get(ctx, "token")
			require.NoError(t, err)
			assert.Equal(t, "abc", v)

			require.NoError(t, s.Put(ctx, map[string]string{"token": "def"}))
			v, err = s.Get(ctx, "token")
			require.NoError(t, err)
			assert.Equal(t, "def", v)

			require.NoError(t, s.Delete(ctx, "token", "user"))
			_, err = s.Get(ctx, "token")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, "user")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting missing keys is not an error.
			assert.NoError(t, s.Delete(ctx, "token"))
			assert.NoError(t, s.Delete(ctx))
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, map[string]string{"token": "persisted"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", v)
}

func TestRedisUsesPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := OpenRedis(ctx, mr.Addr(), "", 0, "bookworm:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, map[string]string{"token": "abc"}))
	got, err := mr.Get("bookworm:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestOpenRedisFailsFast(t *testing.T) {
	_, err := OpenRedis(context.Background(), "", "", 0, "")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = OpenRedis(context.Background(), addr, "", 0, "")
	assert.Error(t, err)
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	assert.Error(t, m.Put(ctx, map[string]string{"a": "b"}))
	_, err := m.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
