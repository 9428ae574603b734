package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMirror_PutGetForget(t *testing.T) {
	m := NewMirror()

	rec := &Record{Table: "settings", ID: "a", Payload: []byte("v"), Version: 1}
	m.Put(rec)

	got, ok := m.Get("settings:a")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got.Payload)

	// callers get a copy, not the cached record
	got.Payload[0] = 'X'
	again, ok := m.Get("settings:a")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), again.Payload)

	m.Forget("settings:a")
	_, ok = m.Get("settings:a")
	assert.False(t, ok)
}

func TestMirror_TombstonesAreEvicted(t *testing.T) {
	m := NewMirror()
	m.Put(&Record{Table: "settings", ID: "a", Payload: []byte("v"), Version: 1})
	m.Put(&Record{Table: "settings", ID: "a", Version: 2, Deleted: true})

	_, ok := m.Get("settings:a")
	assert.False(t, ok)
}

func TestMirror_ResetSkipsTombstones(t *testing.T) {
	m := NewMirror()
	m.Put(&Record{Table: "settings", ID: "stale", Version: 1})

	m.Reset([]*Record{
		{Table: "settings", ID: "a", Version: 1},
		{Table: "settings", ID: "b", Version: 4, Deleted: true},
	})

	assert.Equal(t, 1, m.Len())
	_, ok := m.Get("settings:stale")
	assert.False(t, ok, "reset replaces prior contents")
	_, ok = m.Get("settings:a")
	assert.True(t, ok)
}
