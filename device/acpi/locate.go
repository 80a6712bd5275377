package acpi

import (
	"acpitopo/device/acpi/table"
	"acpitopo/kernel/mm/physmem"
)

var (
	// If the BIOS identifies itself as EISA-capable, the RSDP may live in
	// the first KiB of the extended BIOS data area whose real-mode segment
	// is stored in the BIOS data area.
	eisaMarkerAddr uint64 = 0xfffd9
	eisaMarker            = "EISA"
	ebdaSegmentPtr uint64 = 0x40e
	ebdaScanLen    uint64 = 1024

	// Otherwise the RSDP must be located in the physical memory region
	// 0xe0000 to 0xfffff
	rsdpLocationLow uint64 = 0xe0000
	rsdpLocationHi  uint64 = 0xfffff
	rsdpAlignment   uint64 = 16
)

// Locate scans the firmware memory regions that may contain an RSDP for sig
// and returns the physical address of the first 16-byte aligned match. The
// extended BIOS data area is searched before the BIOS ROM area.
func Locate(m physmem.Mapper, sig string) (uint64, bool) {
	if ebda, ok := ebdaBase(m); ok {
		if addr, found := scanRegion(m, ebda, ebdaScanLen, sig); found {
			return addr, true
		}
	}

	return scanRegion(m, rsdpLocationLow, rsdpLocationHi-rsdpLocationLow+1, sig)
}

// ebdaBase returns the physical address of the extended BIOS data area if
// the BIOS advertises one.
func ebdaBase(m physmem.Mapper) (uint64, bool) {
	w, err := m.Map(eisaMarkerAddr, uint64(len(eisaMarker)))
	if err != nil {
		return 0, false
	}
	eisa := string(w.Bytes) == eisaMarker
	m.Unmap(w)

	if !eisa {
		return 0, false
	}

	if w, err = m.Map(ebdaSegmentPtr, 2); err != nil {
		return 0, false
	}
	seg := table.Get16(w.Bytes)
	m.Unmap(w)

	if seg == 0 {
		return 0, false
	}

	return uint64(seg) << 4, true
}

func scanRegion(m physmem.Mapper, base, length uint64, sig string) (uint64, bool) {
	w, err := m.Map(base, length)
	if err != nil {
		return 0, false
	}
	defer m.Unmap(w)

	sigLen := uint64(len(sig))
	for off := uint64(0); off+sigLen <= length; off += rsdpAlignment {
		if string(w.Bytes[off:off+sigLen]) == sig {
			return base + off, true
		}
	}

	return 0, false
}

// ReadRSDP decodes the root system descriptor pointer at addr. ACPI 2.0+
// descriptors are 36 bytes long; if the extended descriptor cannot be mapped
// only the ACPI 1.0 part is decoded.
func ReadRSDP(m physmem.Mapper, addr uint64) (*table.RSDPDescriptor, bool) {
	w, err := m.Map(addr, table.ExtRSDPLength)
	if err != nil {
		if w, err = m.Map(addr, table.RSDPLength); err != nil {
			return nil, false
		}
	}
	defer m.Unmap(w)

	return table.ParseRSDP(w.Bytes)
}
