// Package physmem provides access to physical memory ranges. Consumers never
// touch physical addresses directly; they request a Window from a Mapper and
// release it when done.
package physmem

import (
	"acpitopo/kernel"
	"sort"
)

var (
	// ErrNotMapped is returned when a requested range is not backed by any
	// memory known to the mapper.
	ErrNotMapped = &kernel.Error{Module: "physmem", Message: "physical range is not backed by memory"}

	// ErrInvalidRange is returned for zero-length or overflowing requests.
	ErrInvalidRange = &kernel.Error{Module: "physmem", Message: "invalid physical range"}

	// ErrOverlap is returned by Image.AddRegion when a region overlaps an
	// existing one.
	ErrOverlap = &kernel.Error{Module: "physmem", Message: "region overlaps an existing region"}
)

// Window is a mapping of a physical address range.
type Window struct {
	// Addr is the physical address of Bytes[0].
	Addr uint64

	// Bytes provides access to the mapped range.
	Bytes []byte

	// mapping holds the backing allocation for mappers that need to
	// release it on Unmap.
	mapping []byte
}

// Mapper is implemented by objects that can map physical address ranges.
type Mapper interface {
	// Map returns a window covering [addr, addr+size).
	Map(addr, size uint64) (*Window, *kernel.Error)

	// Unmap releases a window obtained via Map. Calling Unmap with a nil
	// window is a no-op.
	Unmap(*Window)
}

type region struct {
	base uint64
	data []byte
}

func (r region) end() uint64 { return r.base + uint64(len(r.data)) }

// Image is a sparse physical address space assembled from byte regions. Map
// returns windows that alias the region contents so writes through a window
// are visible to subsequent mappings.
type Image struct {
	regions []region
}

// NewImage creates an empty physical memory image.
func NewImage() *Image {
	return &Image{}
}

// AddRegion places data at physical address base.
func (img *Image) AddRegion(base uint64, data []byte) *kernel.Error {
	if len(data) == 0 || base+uint64(len(data)) < base {
		return ErrInvalidRange
	}

	nr := region{base: base, data: data}
	for _, r := range img.regions {
		if nr.base < r.end() && r.base < nr.end() {
			return ErrOverlap
		}
	}

	img.regions = append(img.regions, nr)
	sort.Slice(img.regions, func(i, j int) bool { return img.regions[i].base < img.regions[j].base })
	return nil
}

// Map implements Mapper.
func (img *Image) Map(addr, size uint64) (*Window, *kernel.Error) {
	if size == 0 || addr+size < addr {
		return nil, ErrInvalidRange
	}

	for _, r := range img.regions {
		if addr >= r.base && addr+size <= r.end() {
			off := addr - r.base
			return &Window{Addr: addr, Bytes: r.data[off : off+size : off+size]}, nil
		}
	}

	return nil, ErrNotMapped
}

// Unmap implements Mapper.
func (img *Image) Unmap(_ *Window) {}
