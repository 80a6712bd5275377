package physmem

import (
	"acpitopo/kernel"
	"os"

	"golang.org/x/sys/unix"
)

var (
	errOpenDevMem = &kernel.Error{Module: "physmem", Message: "could not open physical memory device"}
	errMmap       = &kernel.Error{Module: "physmem", Message: "mmap of physical memory failed"}

	mmapFn   = unix.Mmap
	munmapFn = unix.Munmap
)

// DevMem maps physical memory through a character device such as /dev/mem.
// All windows are read-only.
type DevMem struct {
	f        *os.File
	pageSize uint64
}

// OpenDevMem opens the physical memory device at path.
func OpenDevMem(path string) (*DevMem, *kernel.Error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_SYNC, 0)
	if err != nil {
		return nil, &kernel.Error{Module: errOpenDevMem.Module, Message: errOpenDevMem.Message + ": " + err.Error()}
	}

	return &DevMem{f: f, pageSize: uint64(unix.Getpagesize())}, nil
}

// Map implements Mapper. The underlying mapping is widened to page
// boundaries.
func (d *DevMem) Map(addr, size uint64) (*Window, *kernel.Error) {
	if size == 0 || addr+size < addr {
		return nil, ErrInvalidRange
	}

	pageAddr := addr &^ (d.pageSize - 1)
	pageOffset := addr - pageAddr
	mapLen := (pageOffset + size + d.pageSize - 1) &^ (d.pageSize - 1)

	data, err := mmapFn(int(d.f.Fd()), int64(pageAddr), int(mapLen), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errMmap
	}

	return &Window{
		Addr:    addr,
		Bytes:   data[pageOffset : pageOffset+size : pageOffset+size],
		mapping: data,
	}, nil
}

// Unmap implements Mapper.
func (d *DevMem) Unmap(w *Window) {
	if w == nil || w.mapping == nil {
		return
	}

	munmapFn(w.mapping)
	w.mapping, w.Bytes = nil, nil
}

// Close releases the underlying device handle.
func (d *DevMem) Close() error {
	return d.f.Close()
}
