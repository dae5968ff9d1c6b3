package photos

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func setupTestBucket(t *testing.T, maxBytes int64) *Bucket {
	t.Helper()

	b, err := New(afero.NewMemMapFs(), "party-bingo", maxBytes)
	require.NoError(t, err)
	b.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return b
}

func TestNew(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), "", 0)
	assert.Error(t, err)

	_, err = New(afero.NewMemMapFs(), "a/b", 0)
	assert.Error(t, err)
}

func TestPut(t *testing.T) {
	t.Run("names the photo after the player", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		key, err := b.Put("Mary Ann  Lee", "IMG_0001.JPG", bytes.NewReader(pngHeader))
		require.NoError(t, err)
		assert.Equal(t, "Mary_Ann_Lee-1700000000000.jpg", key)

		f, err := b.Open(key)
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	t.Run("falls back to sniffed extension", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		key, err := b.Put("Sam", "blob", bytes.NewReader(pngHeader))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(key, ".png"), key)
	})

	t.Run("does not overwrite within the same millisecond", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		k1, err := b.Put("Sam", "a.png", bytes.NewReader(pngHeader))
		require.NoError(t, err)
		k2, err := b.Put("Sam", "a.png", bytes.NewReader(pngHeader))
		require.NoError(t, err)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("rejects non-images", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		_, err := b.Put("Sam", "notes.txt", strings.NewReader("hello there"))
		assert.ErrorIs(t, err, ErrNotImage)
	})

	t.Run("rejects oversized uploads", func(t *testing.T) {
		b := setupTestBucket(t, 8)

		_, err := b.Put("Sam", "a.png", bytes.NewReader(pngHeader))
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("sanitizes path characters", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		key, err := b.Put("../etc/x", "a.png", bytes.NewReader(pngHeader))
		require.NoError(t, err)
		assert.NotContains(t, key, "/")
	})

	t.Run("keeps names usable in URLs", func(t *testing.T) {
		b := setupTestBucket(t, 1024)

		for name, want := range map[string]string{
			"Who?":     "Who-1700000000000.png",
			"Team #1":  "Team_1-1700000000000.png",
			"100% fun": "100_fun-1700000000000.png",
			"Zoë":      "Zoë-1700000000000.png",
			"???":      "player-1700000000000.png",
		} {
			key, err := b.Put(name, "a.png", bytes.NewReader(pngHeader))
			require.NoError(t, err, name)
			assert.Equal(t, want, key, name)
			assert.False(t, strings.ContainsAny(key, "?#% /"), key)
		}
	})
}

func TestOpenRejectsTraversal(t *testing.T) {
	b := setupTestBucket(t, 1024)

	for _, key := range []string{"", ".", "..", "../secret", `a\b`} {
		_, err := b.Open(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestRemove(t *testing.T) {
	b := setupTestBucket(t, 1024)

	key, err := b.Put("Sam", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.NoError(t, b.Remove(key))

	keys, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.ErrorIs(t, b.Remove("../secret"), ErrInvalidKey)
}

func TestListAndRemoveAll(t *testing.T) {
	b := setupTestBucket(t, 1024)

	keys, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = b.Put("A", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	_, err = b.Put("B", "b.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	keys, err = b.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1700000000000.png", "B-1700000000000.png"}, keys)

	n, err := b.RemoveAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err = b.List()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
