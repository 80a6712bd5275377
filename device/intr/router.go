package intr

import (
	"acpitopo/device/apic"
	"acpitopo/kernel/kfmt"
	"io"
)

// NumLegacyIRQs is the number of ISA interrupt lines that are identity mapped
// to global system interrupts unless overridden.
const NumLegacyIRQs = 16

// Result describes the outcome of a line registration.
type Result uint8

// The list of registration outcomes.
const (
	// Registered indicates that a new mapping was created.
	Registered Result = iota

	// AlreadyMapped indicates that the (bus, irq) pair was mapped by an
	// earlier registration which has been left untouched.
	AlreadyMapped

	// NoController indicates that no enabled I/O APIC handles the global
	// system interrupt.
	NoController
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case Registered:
		return "registered"
	case AlreadyMapped:
		return "already mapped"
	case NoController:
		return "no controller"
	}
	return "unknown"
}

// Router maintains the bus list and interrupt mappings. RegisterLine is the
// only way to mutate its state. Router is not safe for concurrent mutation;
// once discovery completes it is treated as read-only.
type Router struct {
	apics *apic.Table
	buses []*Bus
	isa   *Bus

	// w receives diagnostics about registrations that could not be
	// resolved.
	w io.Writer
}

// NewRouter returns a router that resolves global system interrupts using
// the I/O APICs in apics and logs diagnostics to w.
func NewRouter(apics *apic.Table, w io.Writer) *Router {
	return &Router{apics: apics, w: w}
}

// RegisterLine maps busRelativeIRQ on the bus identified by (busType, busno)
// to the I/O APIC input that handles gsi. The first registration for a
// (bus, irq) pair wins; later registrations are ignored. Buses are created
// on first reference. Only the polarity and trigger fields of flags are
// kept.
func (r *Router) RegisterLine(gsi uint32, busType BusType, busno, busRelativeIRQ int, flags uint16) Result {
	ioapic, intin, ok := r.apics.FindIOAPIC(gsi)
	if !ok {
		kfmt.Fprintf(r.w, "findapic: no ioapic found for gsi %d\n", gsi)
		return NoController
	}

	bus := r.findOrCreateBus(busType, busno)
	if bus.Mapping(busRelativeIRQ) != nil {
		return AlreadyMapped
	}

	bus.mappings = append(bus.mappings, &Mapping{
		Bus:   bus,
		IRQ:   busRelativeIRQ,
		APIC:  ioapic.ID,
		Intin: intin,
		Flags: flags & (FlagPolarityMask | FlagTriggerMask),
	})

	return Registered
}

// RegisterLegacyISA identity maps the legacy ISA lines 0-15 on ISA bus 0 to
// global system interrupts 0-15. Lines that are already mapped keep their
// existing mapping. It returns the number of new mappings.
func (r *Router) RegisterLegacyISA() int {
	var count int
	for irq := 0; irq < NumLegacyIRQs; irq++ {
		if r.RegisterLine(uint32(irq), BusISA, 0, irq, 0) == Registered {
			count++
		}
	}
	return count
}

func (r *Router) findOrCreateBus(busType BusType, busno int) *Bus {
	if bus := r.Bus(busType, busno); bus != nil {
		return bus
	}

	bus := newBus(busType, busno)
	if busType == BusISA && r.isa == nil {
		r.isa = bus
	}
	r.buses = append(r.buses, bus)
	return bus
}

// Bus returns the bus matching (busType, busno) or nil.
func (r *Router) Bus(busType BusType, busno int) *Bus {
	for _, bus := range r.buses {
		if bus.Type == busType && bus.Number == busno {
			return bus
		}
	}
	return nil
}

// Buses returns all known buses in creation order.
func (r *Router) Buses() []*Bus {
	return r.buses
}

// ISABus returns the first ISA bus that was created or nil.
func (r *Router) ISABus() *Bus {
	return r.isa
}

// Lookup returns the mapping for a bus-relative irq or nil.
func (r *Router) Lookup(busType BusType, busno, busRelativeIRQ int) *Mapping {
	bus := r.Bus(busType, busno)
	if bus == nil {
		return nil
	}
	return bus.Mapping(busRelativeIRQ)
}
