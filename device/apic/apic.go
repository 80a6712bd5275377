// Package apic holds the processor and interrupt-controller records derived
// from the firmware topology. Records are stored in fixed-size tables indexed
// by controller id.
package apic

import (
	"acpitopo/kernel"
	"acpitopo/kernel/mm/physmem"
)

// MaxAPICNO is the largest controller id that can be recorded. Records with
// larger ids are dropped.
const MaxAPICNO = 254

// IMask is the local vector table mask bit. Local interrupt lines start out
// masked.
const IMask = 1 << 16

// DefaultMaxRedirEntry is used for I/O APICs whose driver does not report
// the number of redirection entries (a standard 24-input controller).
const DefaultMaxRedirEntry = 23

// Flags describes the state of an APIC record.
type Flags uint8

// The list of supported APIC record flags.
const (
	// FlagEnabled is set for usable controllers.
	FlagEnabled Flags = 1 << iota

	// FlagBootProcessor marks the local APIC of the bootstrap processor.
	FlagBootProcessor
)

// Type distinguishes processor-local controllers from I/O controllers.
type Type uint8

// The list of APIC record types.
const (
	TypeProcessor Type = iota
	TypeIOAPIC
)

// LocalAPIC describes a processor and its local interrupt controller.
type LocalAPIC struct {
	ID          uint8
	ProcessorID uint8

	// PhysBase is the physical address of the local APIC register block
	// and Window its mapping (nil if the block could not be mapped).
	PhysBase uint64
	Window   *physmem.Window

	// LINT holds the local vector table entries for the LINT0/LINT1
	// inputs. They are owned by the interrupt-controller driver once the
	// topology has been built.
	LINT [2]uint32

	Flags Flags

	// MachNo is the logical processor number. It is only meaningful for
	// enabled processors and is -1 otherwise.
	MachNo int
}

// Type implements Record.
func (*LocalAPIC) Type() Type { return TypeProcessor }

// Enabled reports whether the processor is usable.
func (a *LocalAPIC) Enabled() bool { return a.Flags&FlagEnabled != 0 }

// BootProcessor reports whether this is the bootstrap processor.
func (a *LocalAPIC) BootProcessor() bool { return a.Flags&FlagBootProcessor != 0 }

// IOAPIC describes an I/O interrupt controller.
type IOAPIC struct {
	ID uint8

	PhysBase uint64
	Window   *physmem.Window

	// GSIBase is the first global system interrupt handled by this
	// controller and MaxRedirEntry the index of its last input.
	GSIBase       uint32
	MaxRedirEntry uint32

	Flags Flags
}

// Type implements Record.
func (*IOAPIC) Type() Type { return TypeIOAPIC }

// Enabled reports whether the controller is usable.
func (a *IOAPIC) Enabled() bool { return a.Flags&FlagEnabled != 0 }

// Handles reports whether gsi falls in [GSIBase, GSIBase+MaxRedirEntry] and
// returns the matching controller input.
func (a *IOAPIC) Handles(gsi uint32) (intin uint32, ok bool) {
	if gsi < a.GSIBase || uint64(gsi) > uint64(a.GSIBase)+uint64(a.MaxRedirEntry) {
		return 0, false
	}
	return gsi - a.GSIBase, true
}

// Record is implemented by LocalAPIC and IOAPIC.
type Record interface {
	Type() Type
}

// Driver is implemented by interrupt-controller drivers. InitIOAPIC is
// invoked once per I/O APIC after its register window has been mapped and is
// expected to set MaxRedirEntry.
type Driver interface {
	InitIOAPIC(*IOAPIC) *kernel.Error
}

// Table stores APIC records indexed by controller id. Local and I/O APICs
// live in separate id spaces.
type Table struct {
	local [MaxAPICNO + 1]*LocalAPIC
	io    [MaxAPICNO + 1]*IOAPIC
}

// SetLocal records a local APIC. It returns false if the id exceeds
// MaxAPICNO.
func (t *Table) SetLocal(a *LocalAPIC) bool {
	if int(a.ID) > MaxAPICNO {
		return false
	}
	t.local[a.ID] = a
	return true
}

// SetIO records an I/O APIC. It returns false if the id exceeds MaxAPICNO.
func (t *Table) SetIO(a *IOAPIC) bool {
	if int(a.ID) > MaxAPICNO {
		return false
	}
	t.io[a.ID] = a
	return true
}

// Local returns the local APIC with the given id or nil.
func (t *Table) Local(id int) *LocalAPIC {
	if id < 0 || id > MaxAPICNO {
		return nil
	}
	return t.local[id]
}

// IO returns the I/O APIC with the given id or nil.
func (t *Table) IO(id int) *IOAPIC {
	if id < 0 || id > MaxAPICNO {
		return nil
	}
	return t.io[id]
}

// Processors returns all local APIC records in id order.
func (t *Table) Processors() []*LocalAPIC {
	var list []*LocalAPIC
	for _, a := range t.local {
		if a != nil {
			list = append(list, a)
		}
	}
	return list
}

// IOAPICs returns all I/O APIC records in id order.
func (t *Table) IOAPICs() []*IOAPIC {
	var list []*IOAPIC
	for _, a := range t.io {
		if a != nil {
			list = append(list, a)
		}
	}
	return list
}

// BootProcessor returns the local APIC of the bootstrap processor or nil.
func (t *Table) BootProcessor() *LocalAPIC {
	for _, a := range t.local {
		if a != nil && a.BootProcessor() {
			return a
		}
	}
	return nil
}

// FindIOAPIC returns the enabled I/O APIC that handles gsi together with the
// controller input that gsi maps to. Controllers are searched in id order.
func (t *Table) FindIOAPIC(gsi uint32) (*IOAPIC, uint32, bool) {
	for _, a := range t.io {
		if a == nil || !a.Enabled() {
			continue
		}

		if intin, ok := a.Handles(gsi); ok {
			return a, intin, true
		}
	}

	return nil, 0, false
}
