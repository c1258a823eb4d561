// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: shmem.go — File-backed shared mapping of the mailbox image
//
// Purpose:
//   - Maps exactly one image worth of a file (typically under /dev/shm) so
//     the master and slave can live in separate processes.
//
// Notes:
//   - The file is grown to the interface size on first use; a fresh file
//     is zero, which is the state both sides expect before the first
//     session.
//   - The mapping is MAP_SHARED: stores are visible to every process that
//     maps the same file.
// ─────────────────────────────────────────────────────────────────────────────

package shmem

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"mailbox/constants"
	"mailbox/image"
)

// Region is a mapped mailbox file.
type Region struct {
	f *os.File
	m mmap.MMap
}

// Map opens or creates path and maps its first ImageSize bytes.
func Map(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open region %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat region %s: %w", path, err)
	}
	if info.Size() < constants.ImageSize {
		if err := f.Truncate(constants.ImageSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size region %s: %w", path, err)
		}
	}

	m, err := mmap.MapRegion(f, constants.ImageSize, mmap.RDWR, 0, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map region %s: %w", path, err)
	}
	return &Region{f: f, m: m}, nil
}

// Bytes exposes the mapped bytes.
func (r *Region) Bytes() []byte { return r.m }

// Image wraps the mapping as a mailbox image.
func (r *Region) Image() (*image.Image, error) { return image.Wrap(r.m) }

// Flush writes dirty pages back to the file.
func (r *Region) Flush() error { return r.m.Flush() }

// Close unmaps the region and closes the file. The image must no longer be
// driven.
func (r *Region) Close() error {
	if err := r.m.Unmap(); err != nil {
		r.f.Close()
		return fmt.Errorf("failed to unmap region: %w", err)
	}
	return r.f.Close()
}
