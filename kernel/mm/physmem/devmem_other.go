//go:build !linux

package physmem

import "acpitopo/kernel"

var errNoDevMem = &kernel.Error{Module: "physmem", Message: "physical memory device not supported on this platform"}

// DevMem is unavailable on this platform.
type DevMem struct{}

// OpenDevMem always fails on this platform.
func OpenDevMem(_ string) (*DevMem, *kernel.Error) {
	return nil, errNoDevMem
}

// Map implements Mapper.
func (*DevMem) Map(_, _ uint64) (*Window, *kernel.Error) { return nil, errNoDevMem }

// Unmap implements Mapper.
func (*DevMem) Unmap(_ *Window) {}

// Close implements io.Closer.
func (*DevMem) Close() error { return nil }
