package media

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Store(t *testing.T) {
	root := newTestRoot(t)
	w := NewWriter(root)

	stored, err := w.Store([]byte("payload"), ".png", "products")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^\d{13}-[0-9a-f]{16}\.png$`), stored.Filename)
	assert.Equal(t, "/uploads/products/"+stored.Filename, stored.URL)
	assert.Equal(t, filepath.Join(root.Dir(), "products", stored.Filename), stored.Path)
	assert.Equal(t, int64(7), stored.Size)

	data, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriter_StoreDistinctNames(t *testing.T) {
	w := NewWriter(newTestRoot(t))

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		stored, err := w.Store([]byte("x"), ".gif", "general")
		require.NoError(t, err)
		assert.False(t, seen[stored.Filename], "duplicate filename %s", stored.Filename)
		seen[stored.Filename] = true
	}
}

func TestWriter_CollisionDoesNotOverwrite(t *testing.T) {
	w := NewWriter(newTestRoot(t))
	fixed := time.UnixMilli(1700000000000)
	w.now = func() time.Time { return fixed }
	w.token = func() string { return "0123456789abcdef" }

	first, err := w.Store([]byte("first"), ".jpg", "general")
	require.NoError(t, err)

	_, err = w.Store([]byte("second"), ".jpg", "general")
	assert.ErrorIs(t, err, ErrStorage)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestWriter_RejectsBadInput(t *testing.T) {
	w := NewWriter(newTestRoot(t))

	_, err := w.Store([]byte("x"), ".png", "../outside")
	assert.ErrorIs(t, err, ErrPathTraversal)

	_, err = w.Store([]byte("x"), "./../x", "general")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestRoot_Contains(t *testing.T) {
	root := newTestRoot(t)

	assert.True(t, root.Contains(filepath.Join(root.Dir(), "general", "a.jpg")))
	assert.False(t, root.Contains(root.Dir()))
	assert.False(t, root.Contains(filepath.Dir(root.Dir())))
	assert.False(t, root.Contains(root.Dir()+"-sibling/a.jpg"))
	assert.False(t, root.Contains("general/a.jpg"))
}

func TestNewRoot_RequiresDir(t *testing.T) {
	_, err := NewRoot("  ")
	assert.Error(t, err)
}
