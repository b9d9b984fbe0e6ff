package media

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobStore_PutOpenDelete(t *testing.T) {
	store := NewMemoryBlobStore("https://cdn.example.test/")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "projects/p1/hero/a.jpg", strings.NewReader("jpeg-bytes"), 10, "image/jpeg"))
	reader, ok := store.Open("projects/p1/hero/a.jpg")
	require.True(t, ok)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "https://cdn.example.test/projects/p1/hero/a.jpg", store.PublicURL("projects/p1/hero/a.jpg"))

	require.NoError(t, store.DeleteBatch(ctx, []string{"projects/p1/hero/a.jpg", "missing"}))
	assert.False(t, store.Has("projects/p1/hero/a.jpg"))
}

func TestMemoryBlobStore_RejectsEmptyKey(t *testing.T) {
	store := NewMemoryBlobStore("")
	assert.ErrorIs(t, store.Put(context.Background(), " ", strings.NewReader(""), 0, ""), errEmptyKey)
	assert.Equal(t, "/a/b.png", store.PublicURL("a/b.png"))
}
