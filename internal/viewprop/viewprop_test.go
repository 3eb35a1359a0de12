package viewprop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_MergesIntoSection(t *testing.T) {
	var changed []string
	store := NewStore(func(section string) { changed = append(changed, section) })
	ch := NewChannel()
	ch.Register(store.Set)

	require.True(t, ch.Push("recentnotes", "links", []string{"a"}))
	require.True(t, ch.Push("recentnotes", "title", "Recent"))
	require.True(t, ch.Push("recentnotes", "links", []string{"b"}))
	require.True(t, ch.Push("backlinks", "links", []string{"x"}))

	assert.Equal(t, Props{"links": []string{"b"}, "title": "Recent"}, store.Section("recentnotes"))
	assert.Equal(t, Props{"links": []string{"x"}}, store.Section("backlinks"))
	assert.Equal(t, []string{"recentnotes", "recentnotes", "recentnotes", "backlinks"}, changed)
}

func TestPush_AfterUnregisterIsNoop(t *testing.T) {
	store := NewStore(nil)
	ch := NewChannel()
	ch.Register(store.Set)
	ch.Push("recentnotes", "links", []string{"a"})
	before := store.Snapshot()

	ch.Unregister()
	assert.False(t, ch.Registered())
	assert.NotPanics(t, func() {
		assert.False(t, ch.Push("recentnotes", "links", []string{"b", "c"}))
	})
	assert.Equal(t, before, store.Snapshot())

	// Nothing was buffered for the next panel.
	next := NewStore(nil)
	ch.Register(next.Set)
	assert.Empty(t, next.Snapshot())
}

func TestPush_NeverRegistered(t *testing.T) {
	ch := NewChannel()
	assert.False(t, ch.Push("x", "y", 1))
}

func TestRegister_ReplacesPrevious(t *testing.T) {
	first, second := NewStore(nil), NewStore(nil)
	ch := NewChannel()
	ch.Register(first.Set)
	ch.Register(second.Set)
	ch.Push("s", "p", 1)

	assert.Nil(t, first.Section("s"))
	assert.Equal(t, Props{"p": 1}, second.Section("s"))
}

func TestSection_IsStableAfterWrite(t *testing.T) {
	store := NewStore(nil)
	store.Set("s", "a", 1)
	old := store.Section("s")
	store.Set("s", "b", 2)
	assert.Equal(t, Props{"a": 1}, old)
}

func TestChannel_ConcurrentPushAndUnregister(t *testing.T) {
	store := NewStore(nil)
	ch := NewChannel()
	ch.Register(store.Set)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ch.Push("s", "v", i*j)
			}
		}(i)
	}
	ch.Unregister()
	wg.Wait()

	snap := store.Snapshot()
	ch.Push("s", "v", -1)
	assert.Equal(t, snap, store.Snapshot())
}

func TestRegistration_StaleOwnerCannotPushOrDetach(t *testing.T) {
	old, fresh := NewStore(nil), NewStore(nil)
	ch := NewChannel()
	oldReg := ch.Register(old.Set)
	freshReg := ch.Register(fresh.Set)

	assert.False(t, oldReg.Current())
	assert.False(t, oldReg.Push("s", "p", "stale"))
	require.True(t, freshReg.Push("s", "p", "fresh"))

	oldReg.Unregister()
	assert.True(t, ch.Registered(), "a replaced registration leaves the newer panel attached")
	assert.True(t, freshReg.Current())
	assert.Equal(t, Props{"p": "fresh"}, fresh.Section("s"))
	assert.Nil(t, old.Section("s"))

	freshReg.Unregister()
	assert.False(t, ch.Registered())
	assert.False(t, freshReg.Push("s", "p", "late"))
}

func TestRegistration_ReRegisterAfterUnregister(t *testing.T) {
	first, second := NewStore(nil), NewStore(nil)
	ch := NewChannel()
	reg := ch.Register(first.Set)
	reg.Unregister()

	next := ch.Register(second.Set)
	assert.False(t, reg.Push("s", "p", 1))
	assert.True(t, next.Push("s", "p", 2))
	assert.Equal(t, Props{"p": 2}, second.Section("s"))
}
