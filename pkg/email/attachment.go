package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
)

// Attachment descriptor types as persisted in scheduled email and log rows.
const (
	DescriptorFile    = "file"
	DescriptorRaw     = "raw"
	DescriptorStorage = "storage"
)

// Descriptor is the storable form of one attachment: a file path, inline
// base64 payload, or a storage-disk reference to be resolved at send time.
type Descriptor struct {
	Type        string `json:"type"`
	Path        string `json:"path,omitempty"`
	Name        string `json:"name,omitempty"`
	Data        string `json:"data,omitempty"`
	Disk        string `json:"disk,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// BlobOpener resolves a storage-disk attachment reference into a readable
// stream. Implemented by pkg/blob; injected so the manager stays free of any
// particular storage backend.
type BlobOpener interface {
	Open(ctx context.Context, disk, key string) (io.ReadCloser, error)
}

// AttachmentManager accumulates attachment descriptors and resolves them to
// concrete bytes at send time. File-path attachments are checked for
// existence at registration; a missing file is skipped with a warning rather
// than failing the whole message.
type AttachmentManager struct {
	logger      *slog.Logger
	opener      BlobOpener
	descriptors []Descriptor
}

// AttachmentOption configures an AttachmentManager.
type AttachmentOption func(*AttachmentManager)

// WithBlobOpener sets the opener used to resolve storage-disk attachments.
func WithBlobOpener(o BlobOpener) AttachmentOption {
	return func(m *AttachmentManager) { m.opener = o }
}

// WithAttachmentLogger sets the logger used for skip warnings.
func WithAttachmentLogger(l *slog.Logger) AttachmentOption {
	return func(m *AttachmentManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewAttachmentManager creates an empty manager.
func NewAttachmentManager(opts ...AttachmentOption) *AttachmentManager {
	m := &AttachmentManager{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddFile registers a file-path attachment. If the file does not exist at
// registration time the attachment is skipped and a warning is logged.
func (m *AttachmentManager) AddFile(path string) *AttachmentManager {
	if _, err := os.Stat(path); err != nil {
		m.logger.Warn("attachment file not found, skipped", slog.String("path", path))
		return m
	}
	m.descriptors = append(m.descriptors, Descriptor{Type: DescriptorFile, Path: path})
	return m
}

// AddData registers raw bytes as a named attachment.
func (m *AttachmentManager) AddData(data []byte, name string) *AttachmentManager {
	m.descriptors = append(m.descriptors, Descriptor{
		Type: DescriptorRaw,
		Name: name,
		Data: base64.StdEncoding.EncodeToString(data),
	})
	return m
}

// AddFromStorage registers a storage-disk reference resolved lazily at send
// time through the configured BlobOpener.
func (m *AttachmentManager) AddFromStorage(disk, key, name string) *AttachmentManager {
	if name == "" {
		name = filepath.Base(key)
	}
	m.descriptors = append(m.descriptors, Descriptor{
		Type: DescriptorStorage,
		Disk: disk,
		Path: key,
		Name: name,
	})
	return m
}

// Descriptors returns a snapshot of the registered descriptors for
// persistence alongside a scheduled email or log row.
func (m *AttachmentManager) Descriptors() []Descriptor {
	out := make([]Descriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// Restore replaces the manager contents with persisted descriptors. Used by
// the scheduling engine when replaying a stored record.
func (m *AttachmentManager) Restore(descriptors []Descriptor) {
	m.descriptors = make([]Descriptor, len(descriptors))
	copy(m.descriptors, descriptors)
}

// HasAttachments reports whether any descriptor is registered.
func (m *AttachmentManager) HasAttachments() bool {
	return len(m.descriptors) > 0
}

// Reset clears all registered descriptors.
func (m *AttachmentManager) Reset() {
	m.descriptors = nil
}

// Resolve materializes every descriptor into attachment bytes. File reads,
// base64 decoding, and storage fetches happen here; a failure resolving any
// single descriptor aborts the send, since a message with silently missing
// attachments is worse than a retryable error.
func (m *AttachmentManager) Resolve(ctx context.Context) ([]Attachment, error) {
	if len(m.descriptors) == 0 {
		return nil, nil
	}

	out := make([]Attachment, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		switch d.Type {
		case DescriptorFile:
			content, err := os.ReadFile(d.Path)
			if err != nil {
				return nil, fmt.Errorf("email: read attachment %s: %w", d.Path, err)
			}
			out = append(out, Attachment{
				Filename:    filepath.Base(d.Path),
				ContentType: contentTypeFor(d, d.Path),
				Content:     content,
			})

		case DescriptorRaw:
			content, err := base64.StdEncoding.DecodeString(d.Data)
			if err != nil {
				return nil, fmt.Errorf("email: decode attachment %s: %w", d.Name, err)
			}
			out = append(out, Attachment{
				Filename:    d.Name,
				ContentType: contentTypeFor(d, d.Name),
				Content:     content,
			})

		case DescriptorStorage:
			if m.opener == nil {
				return nil, ErrNoBlobOpener
			}
			rc, err := m.opener.Open(ctx, d.Disk, d.Path)
			if err != nil {
				return nil, fmt.Errorf("email: open storage attachment %s/%s: %w", d.Disk, d.Path, err)
			}
			content, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				return nil, fmt.Errorf("email: read storage attachment %s/%s: %w", d.Disk, d.Path, err)
			}
			out = append(out, Attachment{
				Filename:    d.Name,
				ContentType: contentTypeFor(d, d.Path),
				Content:     content,
			})

		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownAttachmentType, d.Type)
		}
	}
	return out, nil
}

func contentTypeFor(d Descriptor, name string) string {
	if d.ContentType != "" {
		return d.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
