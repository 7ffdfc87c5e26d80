package email_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcraft/mailcraft/pkg/email"
)

type fakeOpener struct {
	content map[string][]byte
}

func (f *fakeOpener) Open(_ context.Context, disk, key string) (io.ReadCloser, error) {
	data, ok := f.content[disk+"/"+key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestAttachmentManager_AddFile_MissingSkipped(t *testing.T) {
	t.Parallel()

	m := email.NewAttachmentManager()
	m.AddFile("/nonexistent/report.pdf")

	assert.False(t, m.HasAttachments())
}

func TestAttachmentManager_Resolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	opener := &fakeOpener{content: map[string][]byte{
		"reports/2026/summary.csv": []byte("a,b\n1,2\n"),
	}}

	m := email.NewAttachmentManager(email.WithBlobOpener(opener))
	m.AddFile(path)
	m.AddData([]byte("raw payload"), "payload.bin")
	m.AddFromStorage("reports", "2026/summary.csv", "")

	require.True(t, m.HasAttachments())
	require.Len(t, m.Descriptors(), 3)

	attachments, err := m.Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, attachments, 3)

	assert.Equal(t, "notes.txt", attachments[0].Filename)
	assert.Equal(t, []byte("hello"), attachments[0].Content)

	assert.Equal(t, "payload.bin", attachments[1].Filename)
	assert.Equal(t, []byte("raw payload"), attachments[1].Content)

	assert.Equal(t, "summary.csv", attachments[2].Filename)
	assert.Equal(t, []byte("a,b\n1,2\n"), attachments[2].Content)
}

func TestAttachmentManager_Resolve_NoOpener(t *testing.T) {
	t.Parallel()

	m := email.NewAttachmentManager()
	m.AddFromStorage("disk", "key", "file.txt")

	_, err := m.Resolve(context.Background())
	require.ErrorIs(t, err, email.ErrNoBlobOpener)
}

func TestAttachmentManager_RestoreRoundTrip(t *testing.T) {
	t.Parallel()

	m := email.NewAttachmentManager()
	m.AddData([]byte("x"), "x.txt")
	descriptors := m.Descriptors()

	restored := email.NewAttachmentManager()
	restored.Restore(descriptors)

	attachments, err := restored.Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	assert.Equal(t, []byte("x"), attachments[0].Content)
}

func TestAttachmentManager_Reset(t *testing.T) {
	t.Parallel()

	m := email.NewAttachmentManager()
	m.AddData([]byte("x"), "x.txt")
	m.Reset()

	assert.False(t, m.HasAttachments())
}
