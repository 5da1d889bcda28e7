// ABOUTME: Tests for the Store implementations
// ABOUTME: Runs the same behavior checks against SQLiteStore and MockStore

package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agentmux.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func implementations(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": newTestSQLiteStore(t),
		"mock":   NewMockStore(),
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: "0123456789abcdef", Comment: "work", Agent: "primary"}))

			m, err := s.GetMapping(ctx, "0123456789abcdef")
			require.NoError(t, err)
			assert.Equal(t, "primary", m.Agent)
			assert.Equal(t, "work", m.Comment)
			assert.EqualValues(t, 1, m.SignCount)
			assert.False(t, m.CreatedAt.IsZero())
		})
	}
}

func TestStore_UpsertMovesAgentAndCounts(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			fp := "fedcba9876543210"

			require.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: fp, Comment: "deploy", Agent: "primary"}))
			require.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: fp, Agent: "secondary"}))

			m, err := s.GetMapping(ctx, fp)
			require.NoError(t, err)
			assert.Equal(t, "secondary", m.Agent)
			assert.Equal(t, "deploy", m.Comment, "empty comment keeps the stored one")
			assert.EqualValues(t, 2, m.SignCount)
		})
	}
}

func TestStore_ListOrdered(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, fp := range []string{"cc", "aa", "bb"} {
				require.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: fp, Agent: "a"}))
			}

			list, err := s.ListMappings(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "aa", list[0].Fingerprint)
			assert.Equal(t, "cc", list[2].Fingerprint)
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetMapping(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.DeleteMapping(ctx, "missing"), ErrNotFound)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: "aa", Agent: "a"}))

			require.NoError(t, s.DeleteMapping(ctx, "aa"))
			_, err := s.GetMapping(ctx, "aa")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RejectsIncompleteMapping(t *testing.T) {
	for name, s := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.UpsertMapping(context.Background(), &KeyMapping{Fingerprint: "aa"}))
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agentmux.db")

	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMapping(context.Background(), &KeyMapping{Fingerprint: "aa", Agent: "primary"}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	m, err := reopened.GetMapping(context.Background(), "aa")
	require.NoError(t, err)
	assert.Equal(t, "primary", m.Agent)
}

func TestSQLiteStore_ConcurrentUpserts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpsertMapping(ctx, &KeyMapping{Fingerprint: "aa", Agent: "primary"}))
		}()
	}
	wg.Wait()

	m, err := s.GetMapping(ctx, "aa")
	require.NoError(t, err)
	assert.EqualValues(t, 20, m.SignCount)
}

func TestMockStore_WriteError(t *testing.T) {
	s := NewMockStore()
	boom := errors.New("disk full")
	s.SetWriteError(boom)

	err := s.UpsertMapping(context.Background(), &KeyMapping{Fingerprint: "aa", Agent: "a"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.Upserts())

	s.SetWriteError(nil)
	assert.NoError(t, s.UpsertMapping(context.Background(), &KeyMapping{Fingerprint: "aa", Agent: "a"}))
}
