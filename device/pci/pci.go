// Package pci models the subset of the PCI device enumeration that the
// interrupt routing code needs: bus/device/function addressing and the
// lookup of PCI-to-PCI bridges.
package pci

import "fmt"

// BusType is the bus class encoded in the top byte of a TBDF.
type BusType uint8

// The list of bus classes that can be encoded in a TBDF.
const (
	BusPCI BusType = 12
)

// TBDF packs a bus type, bus number, device number and function number into
// a single value.
type TBDF uint32

// MkBus builds a TBDF from its components.
func MkBus(busType BusType, busno, devno, fnno int) TBDF {
	return TBDF(uint32(busType)<<24 | uint32(busno&0xff)<<16 | uint32(devno&0x1f)<<11 | uint32(fnno&0x07)<<8)
}

// Type returns the bus type.
func (t TBDF) Type() BusType { return BusType(t >> 24) }

// BusNo returns the bus number.
func (t TBDF) BusNo() int { return int(t>>16) & 0xff }

// DevNo returns the device number.
func (t TBDF) DevNo() int { return int(t>>11) & 0x1f }

// FnNo returns the function number.
func (t TBDF) FnNo() int { return int(t>>8) & 0x07 }

// String implements fmt.Stringer.
func (t TBDF) String() string {
	return fmt.Sprintf("%02x:%02x.%d", t.BusNo(), t.DevNo(), t.FnNo())
}

// Device describes an enumerated PCI function.
type Device struct {
	TBDF TBDF

	// Bridge is set for PCI-to-PCI bridges and describes the secondary
	// bus behind the bridge.
	Bridge *Device
}

// BridgeFinder is implemented by the device enumeration facility. FindByTBDF
// returns the enumerated device at the given address or nil.
type BridgeFinder interface {
	FindByTBDF(TBDF) *Device
}

// Registry is a list of enumerated devices that implements BridgeFinder.
type Registry struct {
	devices []*Device
}

// Add records an enumerated device.
func (r *Registry) Add(dev *Device) {
	r.devices = append(r.devices, dev)
}

// AddBridge records a PCI-to-PCI bridge at (busno, devno, fnno) whose
// secondary bus is secondary.
func (r *Registry) AddBridge(busno, devno, fnno, secondary int) *Device {
	dev := &Device{
		TBDF:   MkBus(BusPCI, busno, devno, fnno),
		Bridge: &Device{TBDF: MkBus(BusPCI, secondary, 0, 0)},
	}
	r.Add(dev)
	return dev
}

// Devices returns the recorded devices in enumeration order.
func (r *Registry) Devices() []*Device {
	return r.devices
}

// FindByTBDF implements BridgeFinder.
func (r *Registry) FindByTBDF(tbdf TBDF) *Device {
	for _, dev := range r.devices {
		if dev.TBDF == tbdf {
			return dev
		}
	}
	return nil
}
