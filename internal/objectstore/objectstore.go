// Package objectstore persists processed images and returns their public URLs.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned when deleting or reading a missing object.
var ErrObjectNotFound = errors.New("object not found")

const uploadTimeout = 50 * time.Second

// GCS stores objects in a Google Cloud Storage (Firebase Storage) bucket.
type GCS struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCS creates a bucket client. An empty credentialsFile uses application
// default credentials.
func NewGCS(ctx context.Context, bucket, publicBase, credentialsFile string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCS{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Put writes data to path and returns its public URL.
func (g *GCS) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	wc := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "public, max-age=86400"
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to write object %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object %s: %w", path, err)
	}

	return g.URL(path), nil
}

// Delete removes the object at path.
func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.client.Bucket(g.bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// Ping checks that the bucket is reachable.
func (g *GCS) Ping(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucket).Attrs(ctx)
	return err
}

// URL returns the public URL of path.
func (g *GCS) URL(path string) string {
	return fmt.Sprintf("%s/%s/%s", g.publicBase, g.bucket, path)
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Memory is an in-process store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	base    string
}

// NewMemory returns an empty in-memory store whose URLs start with base.
func NewMemory(base string) *Memory {
	return &Memory{objects: make(map[string][]byte), base: strings.TrimRight(base, "/")}
}

// Put stores a copy of data under path.
func (m *Memory) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = append([]byte(nil), data...)
	return m.URL(path), nil
}

// Delete removes path.
func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, path)
	return nil
}

// Get returns the bytes stored under path.
func (m *Memory) Get(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, ok
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error {
	return nil
}

// URL returns the URL of path.
func (m *Memory) URL(path string) string {
	return m.base + "/" + path
}

// ImagePath returns the object path of an image's main copy.
func ImagePath(submissionID, imageID string) string {
	return fmt.Sprintf("submissions/%s/%s.jpg", submissionID, imageID)
}

// ThumbnailPath returns the object path of an image's thumbnail.
func ThumbnailPath(submissionID, imageID string) string {
	return fmt.Sprintf("submissions/%s/%s_thumb.jpg", submissionID, imageID)
}
