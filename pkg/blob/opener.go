package blob

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Disk is one storage backend addressed by key.
type Disk interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Registry maps disk names to backends and implements the attachment
// manager's opener capability. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	disks map[string]Disk
}

// NewRegistry creates an empty disk registry.
func NewRegistry() *Registry {
	return &Registry{disks: make(map[string]Disk)}
}

// Register adds or replaces the disk under name.
func (r *Registry) Register(name string, d Disk) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disks[name] = d
}

// Open resolves a disk/key reference to a readable stream.
func (r *Registry) Open(ctx context.Context, disk, key string) (io.ReadCloser, error) {
	r.mu.RLock()
	d, ok := r.disks[disk]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, disk)
	}
	return d.Open(ctx, key)
}

// DirDisk serves keys from a local directory. Intended for development and
// tests.
type DirDisk struct {
	root string
}

// NewDirDisk creates a disk rooted at dir.
func NewDirDisk(dir string) *DirDisk {
	return &DirDisk{root: dir}
}

func (d *DirDisk) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}

// FSDisk serves keys from any fs.FS. Useful for embedding fixtures.
type FSDisk struct {
	fsys fs.FS
}

// NewFSDisk creates a disk over fsys.
func NewFSDisk(fsys fs.FS) *FSDisk {
	return &FSDisk{fsys: fsys}
}

func (d *FSDisk) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := d.fsys.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return f, nil
}
