package kvstore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTripOnDisk(t *testing.T) {
	key, err := ParseKey(strings.Repeat("ab", 32))
	require.NoError(t, err)

	dir := t.TempDir()
	s, err := Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)

	type rec struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, s.SetJSON("session/abc", rec{UserID: "u1"}, time.Hour))
	require.NoError(t, s.Close())

	s, err = Open(OpenOptions{Path: dir, EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()

	var got rec
	require.NoError(t, s.GetJSON("session/abc", &got))
	assert.Equal(t, "u1", got.UserID)

	n, err := s.CountPrefix("session/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete("session/abc"))
	_, err = s.Get("session/abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreTTL(t *testing.T) {
	s, err := Open(OpenOptions{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v"), time.Second))
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	// badger TTLs have one-second resolution
	time.Sleep(2100 * time.Millisecond)
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get("  ")
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, k)

	_, err = ParseKey("abcd")
	assert.Error(t, err)

	k, err = ParseKey("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	assert.Len(t, k, 32)
}
