// Package shm creates and maps the process-shared memory backing the
// audio Ring and CmdRing. The Supervisor creates each segment before
// spawning a Worker; the Worker reopens the same path and maps it
// lazily on first use in its own process, rebinding its process-local
// view onto the same physical pages.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Segment is a process-local mapping of a named shared-memory-backed
// file. Two processes opening the same Path end up with distinct
// Segment values pointing at the same physical pages.
type Segment struct {
	Path string
	Data []byte
}

// Create creates (or truncates) the backing file at path and maps size
// bytes read/write, shared between processes. Only the Supervisor calls
// Create; Workers call Open on the same path.
func Create(path string, size int) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}
	return mapFile(f, path, size)
}

// Open maps an existing segment created by Create. Workers call this
// exactly once, lazily, the first time they touch the Ring/CmdRing in
// their own (forked/spawned) process — never before, since a *Segment
// captured in the parent is not valid across an exec boundary.
func Open(path string, size int) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer f.Close()
	return mapFile(f, path, size)
}

func mapFile(f *os.File, path string, size int) (*Segment, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	return &Segment{Path: path, Data: data}, nil
}

// Close unmaps the segment. It does not remove the backing file — the
// Supervisor owns file lifetime and removes it on final shutdown.
func (s *Segment) Close() error {
	if s.Data == nil {
		return nil
	}
	err := unix.Munmap(s.Data)
	s.Data = nil
	return err
}

// Remove deletes the backing file. Called once by the Supervisor after
// every worker referencing it has exited.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
