// Package intr maintains the bus list and the mapping of bus-relative
// interrupt sources to I/O APIC inputs.
package intr

import "fmt"

// BusType identifies the class of a bus.
type BusType uint8

// The list of supported bus classes.
const (
	BusISA BusType = iota
	BusPCI
)

// String implements fmt.Stringer.
func (t BusType) String() string {
	switch t {
	case BusISA:
		return "ISA"
	case BusPCI:
		return "PCI"
	}
	return fmt.Sprintf("bus(%d)", uint8(t))
}

// Polarity describes the electrical polarity of an interrupt line.
type Polarity uint8

// The list of supported polarities.
const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// String implements fmt.Stringer.
func (p Polarity) String() string {
	if p == ActiveLow {
		return "low"
	}
	return "high"
}

// Trigger describes the trigger mode of an interrupt line.
type Trigger uint8

// The list of supported trigger modes.
const (
	EdgeTriggered Trigger = iota
	LevelTriggered
)

// String implements fmt.Stringer.
func (t Trigger) String() string {
	if t == LevelTriggered {
		return "level"
	}
	return "edge"
}

// MPS INTI flags, as found in interrupt source override records. A zero
// field means "conforms to the bus defaults".
const (
	FlagPolarityMask    uint16 = 0x03
	FlagPolarityDefault uint16 = 0x00
	FlagPolarityHigh    uint16 = 0x01
	FlagPolarityLow     uint16 = 0x03

	FlagTriggerMask    uint16 = 0x0c
	FlagTriggerDefault uint16 = 0x00
	FlagTriggerEdge    uint16 = 0x04
	FlagTriggerLevel   uint16 = 0x0c
)

// Bus describes a bus that interrupt sources are attached to.
type Bus struct {
	Type   BusType
	Number int

	// Default electrical conventions for lines that do not specify them.
	Polarity Polarity
	Trigger  Trigger

	mappings []*Mapping
}

// Mappings returns the interrupt mappings registered for this bus in
// registration order.
func (b *Bus) Mappings() []*Mapping {
	return b.mappings
}

// Mapping returns the mapping for the bus-relative irq or nil.
func (b *Bus) Mapping(irq int) *Mapping {
	for _, m := range b.mappings {
		if m.IRQ == irq {
			return m
		}
	}
	return nil
}

func newBus(busType BusType, busno int) *Bus {
	b := &Bus{Type: busType, Number: busno}
	switch busType {
	case BusISA:
		b.Polarity, b.Trigger = ActiveHigh, EdgeTriggered
	default:
		b.Polarity, b.Trigger = ActiveLow, LevelTriggered
	}
	return b
}

// Mapping routes a bus-relative irq to an I/O APIC input.
type Mapping struct {
	Bus *Bus
	IRQ int

	// APIC is the id of the I/O APIC and Intin the input on that
	// controller.
	APIC  uint8
	Intin uint32

	// Flags holds the polarity and trigger fields supplied at
	// registration time.
	Flags uint16
}

// Polarity returns the line polarity, falling back to the bus default when
// the mapping flags do not specify one.
func (m *Mapping) Polarity() Polarity {
	switch m.Flags & FlagPolarityMask {
	case FlagPolarityHigh:
		return ActiveHigh
	case FlagPolarityLow:
		return ActiveLow
	default:
		return m.Bus.Polarity
	}
}

// Trigger returns the line trigger mode, falling back to the bus default
// when the mapping flags do not specify one.
func (m *Mapping) Trigger() Trigger {
	switch m.Flags & FlagTriggerMask {
	case FlagTriggerEdge:
		return EdgeTriggered
	case FlagTriggerLevel:
		return LevelTriggered
	default:
		return m.Bus.Trigger
	}
}
