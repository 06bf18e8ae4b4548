//go:build !unix

package mmap

import (
	"fmt"
	"os"
)

type readAllMapping struct{}

func (readAllMapping) Close() error { return nil }

// Open reads path fully into memory, the fallback for platforms without a
// POSIX mmap(2) (e.g. Windows, which would otherwise need its own
// CreateFileMapping/MapViewOfFile path, mirroring
// memory_mapped_file.hpp's Win32 branch) — out of scope for this module's
// target deployment, so a plain read stands in.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mmap: reading %s: %w", path, err)
	}
	return &File{data: data, impl: readAllMapping{}}, nil
}
