// Package acpitest builds synthetic firmware images for exercising the acpi
// driver: description tables with valid checksums, root pointers and a
// physical memory layout that places them at fixed addresses.
package acpitest

import (
	"acpitopo/device/acpi/table"
	"acpitopo/kernel/mm/physmem"
	"encoding/binary"
)

// Well-known addresses used by the synthetic firmware layout.
const (
	LowMemSize     = 0xa0000
	BIOSROMBase    = 0xe0000
	BIOSROMSize    = 0x20000
	LocalAPICBase  = 0xfee00000
	IOAPICBase     = 0xfec00000
	APICWindowSize = 1024
)

// Fix updates the length and checksum fields of a table image in place and
// returns it.
func Fix(b []byte) []byte {
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	b[9] = 0
	b[9] = -table.Checksum(b)
	return b
}

// Table assembles a table with a standard header followed by payload.
func Table(sig string, rev uint8, payload []byte) []byte {
	b := make([]byte, table.HeaderLength, table.HeaderLength+len(payload))
	copy(b[0:4], sig)
	b[8] = rev
	copy(b[10:16], "GOPHER")
	copy(b[16:24], "ACPITOPO")
	binary.LittleEndian.PutUint32(b[24:], 1)
	copy(b[28:32], "GACT")
	binary.LittleEndian.PutUint32(b[32:], 1)
	b = append(b, payload...)

	return Fix(b)
}

// RSDP builds a root system descriptor pointer. Descriptors with revision
// >= 2 are 36 bytes long and carry both checksums.
func RSDP(rev uint8, rsdtAddr uint32, xsdtAddr uint64) []byte {
	size := table.RSDPLength
	if rev >= table.Rev2Plus {
		size = table.ExtRSDPLength
	}

	b := make([]byte, size)
	copy(b, table.RSDPSignature)
	copy(b[9:], "GOPHER")
	b[15] = rev
	binary.LittleEndian.PutUint32(b[16:], rsdtAddr)
	b[8] = -table.Checksum(b[:table.RSDPLength])

	if rev >= table.Rev2Plus {
		binary.LittleEndian.PutUint32(b[20:], uint32(size))
		binary.LittleEndian.PutUint64(b[24:], xsdtAddr)
		b[32] = -table.Checksum(b[:table.ExtRSDPLength])
	}

	return b
}

// RSDT builds a root system description table with 32-bit entries.
func RSDT(addrs ...uint32) []byte {
	payload := make([]byte, 4*len(addrs))
	for i, addr := range addrs {
		binary.LittleEndian.PutUint32(payload[4*i:], addr)
	}
	return Table(table.SignatureRSDT, 1, payload)
}

// XSDT builds an extended system description table with 64-bit entries.
func XSDT(addrs ...uint64) []byte {
	payload := make([]byte, 8*len(addrs))
	for i, addr := range addrs {
		binary.LittleEndian.PutUint64(payload[8*i:], addr)
	}
	return Table(table.SignatureXSDT, 1, payload)
}

// FADT builds a fixed ACPI description table of the requested total length
// with the 32-bit and (if length permits) 64-bit DSDT pointers set.
func FADT(length int, dsdt uint32, xdsdt uint64) []byte {
	payload := make([]byte, length-table.HeaderLength)
	if length >= table.FADTMinLenDSDT {
		binary.LittleEndian.PutUint32(payload[table.FADTOffDSDT-table.HeaderLength:], dsdt)
	}
	if length >= table.FADTMinLenXDSDT {
		binary.LittleEndian.PutUint64(payload[table.FADTOffXDSDT-table.HeaderLength:], xdsdt)
	}
	return Table(table.SignatureFADT, 3, payload)
}

// MADT builds a multiple APIC description table from a local APIC address
// and a list of records.
func MADT(lapicAddr uint32, records ...[]byte) []byte {
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload, lapicAddr)
	binary.LittleEndian.PutUint32(payload[4:], 1)
	for _, rec := range records {
		payload = append(payload, rec...)
	}
	return Table(table.SignatureMADT, 3, payload)
}

// Record builds a raw MADT record with the supplied type and body. The
// length byte is derived from the body.
func Record(typ table.MADTEntryType, body ...byte) []byte {
	return append([]byte{byte(typ), byte(2 + len(body))}, body...)
}

// LocalAPIC builds a processor local APIC record.
func LocalAPIC(processorID, apicID uint8, enabled bool) []byte {
	var flags byte
	if enabled {
		flags = table.LocalAPICFlagEnabled
	}
	return Record(table.MADTEntryTypeLocalAPIC, processorID, apicID, flags, 0, 0, 0)
}

// IOAPIC builds an I/O APIC record.
func IOAPIC(id uint8, addr, gsiBase uint32) []byte {
	body := make([]byte, 10)
	body[0] = id
	binary.LittleEndian.PutUint32(body[2:], addr)
	binary.LittleEndian.PutUint32(body[6:], gsiBase)
	return Record(table.MADTEntryTypeIOAPIC, body...)
}

// IntSrcOverride builds an interrupt source override record.
func IntSrcOverride(bus, source uint8, gsi uint32, flags uint16) []byte {
	body := make([]byte, 8)
	body[0] = bus
	body[1] = source
	binary.LittleEndian.PutUint32(body[2:], gsi)
	binary.LittleEndian.PutUint16(body[6:], flags)
	return Record(table.MADTEntryTypeIntSrcOverride, body...)
}

// Firmware is a synthetic physical memory layout with conventional low
// memory, the BIOS ROM area and APIC register windows already mapped.
type Firmware struct {
	Image *physmem.Image
}

// NewFirmware creates a firmware layout with low memory, the BIOS ROM area,
// the default local APIC window and the default I/O APIC window populated
// with zeroes.
func NewFirmware() *Firmware {
	img := physmem.NewImage()
	img.AddRegion(0, make([]byte, LowMemSize))
	img.AddRegion(BIOSROMBase, make([]byte, BIOSROMSize))
	img.AddRegion(LocalAPICBase, make([]byte, APICWindowSize))
	img.AddRegion(IOAPICBase, make([]byte, APICWindowSize))
	return &Firmware{Image: img}
}

// Write copies b into already mapped memory at addr. It panics if the range
// is not mapped.
func (f *Firmware) Write(addr uint64, b []byte) {
	w, err := f.Image.Map(addr, uint64(len(b)))
	if err != nil {
		panic(err)
	}
	copy(w.Bytes, b)
}

// Place adds b as a new memory region at addr. It panics if the region
// overlaps an existing one.
func (f *Firmware) Place(addr uint64, b []byte) {
	if err := f.Image.AddRegion(addr, b); err != nil {
		panic(err)
	}
}

// SetEBDA marks the BIOS as EISA-capable and points the BIOS data area at an
// extended BIOS data area starting at the given real-mode segment.
func (f *Firmware) SetEBDA(segment uint16) {
	f.Write(0xfffd9, []byte("EISA"))
	seg := make([]byte, 2)
	binary.LittleEndian.PutUint16(seg, segment)
	f.Write(0x40e, seg)
}
