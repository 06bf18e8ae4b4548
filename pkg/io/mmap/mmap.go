// Package mmap provides a read-only memory-mapped file view, the
// collaborator the KITTI `.bin` loader uses to view a point-cloud file as
// a packed float32 array without copying it into a Go-managed buffer
// (spec.md 6: "The reader memory-maps the file and views it as the same
// array").
//
// Grounded on original_source/file/memory_mapped_file.hpp's RAII
// open/data/size/close contract; reworked from its platform-switched
// Win32/POSIX internals into Go's standard unix/non-unix build-tag split
// (mmap_unix.go / mmap_other.go), using golang.org/x/sys/unix — already
// present in the module's dependency graph via grpc/prometheus's indirect
// requirement — for the actual mmap(2) syscall.
package mmap

import "os"

// File is a read-only view over a memory-mapped file's bytes.
type File struct {
	data []byte
	impl closer
}

type closer interface {
	Close() error
}

// Data returns the mapped file's contents. The slice is valid until Close
// is called; callers must not retain it past that point.
func (f *File) Data() []byte { return f.data }

// Size returns the mapped file's size in bytes.
func (f *File) Size() int64 { return int64(len(f.data)) }

// Close unmaps the file.
func (f *File) Close() error {
	if f.impl == nil {
		return nil
	}
	return f.impl.Close()
}

// Stat is a small helper so callers can size-check before mapping (e.g.
// KITTI's 16-bytes-per-point divisibility check) without opening twice.
func Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
