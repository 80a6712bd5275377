package acpi

import (
	"acpitopo/device/acpi/acpitest"
	"acpitopo/device/apic"
	"acpitopo/kernel"
	"acpitopo/kernel/mm/physmem"
	"bytes"
	"sync/atomic"
)

const (
	rsdpAddr = acpitest.BIOSROMBase + 0x100
	rsdtAddr = 0x10000
	xsdtAddr = 0x11000
	fadtAddr = 0x12000
	dsdtAddr = 0x13000
	madtAddr = 0x14000
	ssdtAddr = 0x15000
)

// defaultMADT describes two processors and a 24-input I/O APIC with an
// override for the timer (ISA irq 0 -> gsi 2) and the SCI (ISA irq 9, active
// high, level triggered).
func defaultMADT() []byte {
	return acpitest.MADT(acpitest.LocalAPICBase,
		acpitest.LocalAPIC(0, 0, true),
		acpitest.LocalAPIC(1, 1, true),
		acpitest.IOAPIC(2, acpitest.IOAPICBase, 0),
		acpitest.IntSrcOverride(0, 0, 2, 0),
		acpitest.IntSrcOverride(0, 9, 9, 0x000d),
	)
}

// newFirmware writes a table tree with a FADT, DSDT, SSDT and (if madt is
// not nil) a MADT. ACPI 2.0+ firmware exposes the tables through both the
// RSDT and the XSDT.
func newFirmware(rev uint8, madt []byte) *acpitest.Firmware {
	fw := acpitest.NewFirmware()

	fadtLen := 116
	if rev >= 2 {
		fadtLen = 244
	}
	fw.Write(fadtAddr, acpitest.FADT(fadtLen, dsdtAddr, dsdtAddr))
	fw.Write(dsdtAddr, acpitest.Table("DSDT", 2, []byte{0x10, 0x20, 0x30}))
	fw.Write(ssdtAddr, acpitest.Table("SSDT", 2, []byte{0x40}))

	entries := []uint32{fadtAddr, ssdtAddr}
	if madt != nil {
		fw.Write(madtAddr, madt)
		entries = append(entries, madtAddr)
	}

	fw.Write(rsdtAddr, acpitest.RSDT(entries...))
	if rev >= 2 {
		var xentries []uint64
		for _, addr := range entries {
			xentries = append(xentries, uint64(addr))
		}
		fw.Write(xsdtAddr, acpitest.XSDT(xentries...))
	}

	fw.Write(rsdpAddr, acpitest.RSDP(rev, rsdtAddr, xsdtAddr))
	return fw
}

func newEngine(m physmem.Mapper) (*Engine, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Engine{Mapper: m, Log: &buf}, &buf
}

func sigs(e *Engine) []string {
	var list []string
	if cache := e.cached(); cache != nil {
		for _, t := range cache.Tables() {
			list = append(list, t.Sig())
		}
	}
	return list
}

// countingMapper counts Map calls.
type countingMapper struct {
	physmem.Mapper
	maps atomic.Int64
}

func (m *countingMapper) Map(addr, size uint64) (*physmem.Window, *kernel.Error) {
	m.maps.Add(1)
	return m.Mapper.Map(addr, size)
}

// ioapicDriver records the controllers it was asked to initialize.
type ioapicDriver struct {
	inited   []uint8
	maxRedir uint32
	err      *kernel.Error
}

func (d *ioapicDriver) InitIOAPIC(a *apic.IOAPIC) *kernel.Error {
	d.inited = append(d.inited, a.ID)
	if d.maxRedir != 0 {
		a.MaxRedirEntry = d.maxRedir
	}
	return d.err
}
