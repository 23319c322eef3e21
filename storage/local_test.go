package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	n, err := backend.Put(ctx, "blobs/ab/report.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	ok, err := backend.Exists(ctx, "blobs/ab/report.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := backend.Fetch(ctx, "blobs/ab/report.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, backend.Delete(ctx, "blobs/ab/report.pdf"))
	ok, err = backend.Exists(ctx, "blobs/ab/report.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting twice is fine
	require.NoError(t, backend.Delete(ctx, "blobs/ab/report.pdf"))
}

func TestLocalBackendFetchMissing(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Fetch(context.Background(), "nope.bin")
	assert.True(t, errors.Is(err, ErrBlobNotFound))
}

func TestLocalBackendKeysStayInsideBase(t *testing.T) {
	base := t.TempDir()
	backend, err := NewLocalBackend(base)
	require.NoError(t, err)

	full, err := backend.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, backend.basePath))

	_, err = backend.resolve("/")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalBackendPutHonoursCancellation(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = backend.Put(ctx, "cancelled.bin", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	ok, err := backend.Exists(context.Background(), "cancelled.bin")
	require.NoError(t, err)
	assert.False(t, ok)
}
