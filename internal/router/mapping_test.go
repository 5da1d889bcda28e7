// ABOUTME: Tests for the fingerprint map and merged identity set
// ABOUTME: Covers comment fallback, first-seen ordering and concurrent access

package router

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/agentmux/internal/protocol"
)

func TestFingerprintMap_Lookup(t *testing.T) {
	m := NewFingerprintMap()
	m.Set("aaaaaaaaaaaaaaaa", "primary")
	m.Set(CommentKey("laptop"), "secondary")

	name, ok := m.Lookup("aaaaaaaaaaaaaaaa", "laptop")
	assert.True(t, ok)
	assert.Equal(t, "primary", name, "fingerprint wins over comment")

	name, ok = m.Lookup("bbbbbbbbbbbbbbbb", "laptop")
	assert.True(t, ok)
	assert.Equal(t, "secondary", name)

	_, ok = m.Lookup("bbbbbbbbbbbbbbbb", "")
	assert.False(t, ok)
}

func TestFingerprintMap_SetIfAbsent(t *testing.T) {
	m := NewFingerprintMap()
	assert.True(t, m.SetIfAbsent("k", "a"))
	assert.False(t, m.SetIfAbsent("k", "b"))

	name, _ := m.Get("k")
	assert.Equal(t, "a", name)
	assert.Equal(t, map[string]string{"k": "a"}, m.Snapshot())
}

func TestFingerprintMap_Concurrent(t *testing.T) {
	m := NewFingerprintMap()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := fmt.Sprintf("key-%d", i%10)
			m.Set(k, "agent")
			m.Lookup(k, "comment")
			m.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, m.Len())
}

func TestIdentitySet_FirstSeenWins(t *testing.T) {
	s := newIdentitySet()
	first := protocol.Identity{Blob: []byte("k"), Comment: "first"}
	dup := protocol.Identity{Blob: []byte("k"), Comment: "second"}

	assert.True(t, s.add(first))
	assert.False(t, s.add(dup))
	assert.Equal(t, 1, s.len())
	assert.Equal(t, "first", s.comment(first.Fingerprint()))
	assert.Empty(t, s.comment("missing"))
}
