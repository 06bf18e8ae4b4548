//go:build unix

package mmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

type unixMapping struct {
	data []byte
}

func (u *unixMapping) Close() error {
	if u.data == nil {
		return nil
	}
	err := unix.Munmap(u.data)
	u.data = nil
	return err
}

// Open memory-maps path for read-only access.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: stat %s: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		return &File{data: nil, impl: &unixMapping{}}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: mapping %s: %w", path, err)
	}
	return &File{data: data, impl: &unixMapping{data: data}}, nil
}
