package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopStoreDiscardsWrites(t *testing.T) {
	var s NoopStore
	require.NoError(t, s.WriteBatch([]Entry{{Key: "a", Data: []byte("x")}}))
	_, ok, err := s.ReadByKey("a")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Flush())
}

func TestMemoryStoreRoundTripsWrittenEntries(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.WriteBatch([]Entry{
		{Key: "a", Data: []byte("1")},
		{Key: "b", Data: []byte("2")},
	}))

	got, ok, err := s.ReadByKey("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got.Data)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreWriteBatchReplacesExistingKey(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.WriteBatch([]Entry{{Key: "a", Data: []byte("old")}}))
	require.NoError(t, s.WriteBatch([]Entry{{Key: "a", Data: []byte("new")}}))

	got, ok, err := s.ReadByKey("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got.Data)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreReadByKeyMissingReturnsFalse(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.ReadByKey("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
