package blob

import (
	"context"
	"io"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_OpenRoutesToDisk(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("fixtures", NewFSDisk(fstest.MapFS{
		"invoices/2026-03.pdf": &fstest.MapFile{Data: []byte("pdf-bytes")},
	}))

	rc, err := reg.Open(context.Background(), "fixtures", "invoices/2026-03.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf-bytes"), data)
}

func TestRegistry_UnknownDisk(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	_, err := reg.Open(context.Background(), "ghost", "key")
	require.ErrorIs(t, err, ErrUnknownDisk)
}

func TestFSDisk_NotFound(t *testing.T) {
	t.Parallel()

	d := NewFSDisk(fstest.MapFS{})
	_, err := d.Open(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirDisk_NotFound(t *testing.T) {
	t.Parallel()

	d := NewDirDisk(t.TempDir())
	_, err := d.Open(context.Background(), "missing.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3Config_Validate(t *testing.T) {
	t.Parallel()

	_, err := NewS3Disk(S3Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
