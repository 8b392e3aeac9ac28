package objectstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	assert.Equal(t, "submissions/s1/i1.jpg", ImagePath("s1", "i1"))
	assert.Equal(t, "submissions/s1/i1_thumb.jpg", ThumbnailPath("s1", "i1"))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("https://storage.example.org/bucket/")

	url, err := m.Put(ctx, "submissions/a/b.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.org/bucket/submissions/a/b.jpg", url)

	data, ok := m.Get("submissions/a/b.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg"), data)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Delete(ctx, "submissions/a/b.jpg"))
	assert.Equal(t, 0, m.Len())
	assert.True(t, errors.Is(m.Delete(ctx, "submissions/a/b.jpg"), ErrObjectNotFound))
}

func TestGCS_URL(t *testing.T) {
	g := &GCS{bucket: "mrv-bucket", publicBase: "https://storage.googleapis.com"}
	assert.Equal(t, "https://storage.googleapis.com/mrv-bucket/submissions/x/y.jpg", g.URL("submissions/x/y.jpg"))
}

func TestNewGCS_RequiresBucket(t *testing.T) {
	_, err := NewGCS(context.Background(), "", "https://storage.googleapis.com", "")
	require.Error(t, err)
}
