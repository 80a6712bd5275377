package acpi

import (
	"acpitopo/device/acpi/aml"
	"acpitopo/device/acpi/table"
	"acpitopo/device/apic"
	"acpitopo/device/intr"
	"acpitopo/kernel/kfmt"
)

var (
	// apicWindowSize is the size of the local and I/O APIC register
	// windows that are mapped while building the topology.
	apicWindowSize uint64 = 1024

	// picModeAPIC is the argument passed to \_PIC to switch the firmware
	// to APIC interrupt routing.
	picModeAPIC = aml.Integer(1)
)

// loadNamespace hands the DSDT and the SSDT, whichever are present, to the
// namespace interpreter and switches the firmware to APIC mode.
func (e *Engine) loadNamespace(cache *table.Cache) {
	dsdt := cache.Find(table.SignatureDSDT)
	if dsdt == nil {
		kfmt.Fprintf(e.Log, "no DSDT table; namespace limited to SSDT\n")
	}

	if e.Interpreter == nil {
		kfmt.Fprintf(e.Log, "no namespace interpreter; skipping DSDT/SSDT\n")
		return
	}

	for _, t := range []*table.Table{dsdt, cache.Find(table.SignatureSSDT)} {
		if t == nil {
			continue
		}

		if err := e.Interpreter.Load(t.Sig(), t.Data()); err != nil {
			kfmt.Fprintf(e.Log, "%s at 0x%16x: load failed: %s\n", t.Sig(), t.Addr, err.Message)
		}
	}

	pic := e.Interpreter.Lookup(e.Interpreter.Root(), `\_PIC`)
	if pic == nil {
		kfmt.Fprintf(e.Log, "no \\_PIC method; cannot switch to APIC mode\n")
		return
	}

	if _, err := e.Interpreter.Evaluate(pic, picModeAPIC); err != nil {
		kfmt.Fprintf(e.Log, "\\_PIC(1) failed: %s\n", err.Message)
	}
}

// parseMADT populates apics from the MADT record stream. Interrupt source
// overrides are registered with router as they are encountered.
func (e *Engine) parseMADT(madt *table.Table, apics *apic.Table, router *intr.Router) {
	raw := madt.Bytes()
	if len(raw) < table.MADTOffEntries {
		kfmt.Fprintf(e.Log, "APIC at 0x%16x: table too short (%d bytes)\n", madt.Addr, len(raw))
		return
	}

	lapicBase := uint64(table.Get32(raw[table.MADTOffLocalAPICAddr:]))
	lapicWindow, err := e.Mapper.Map(lapicBase, apicWindowSize)
	if err != nil {
		kfmt.Fprintf(e.Log, "cannot map local APIC at 0x%x: %s\n", lapicBase, err.Message)
		lapicWindow = nil
	}

	var machno int
	table.VisitMADTEntries(raw[table.MADTOffEntries:], func(entry table.MADTEntry) bool {
		p := entry.Payload

		switch entry.Type {
		case table.MADTEntryTypeLocalAPIC:
			if len(p) < table.LocalAPICMinLen {
				kfmt.Fprintf(e.Log, "short %s record (%d bytes); skipping\n", entry.Type, len(p))
				break
			}

			a := &apic.LocalAPIC{
				ID:          p[table.LocalAPICOffAPICID],
				ProcessorID: p[table.LocalAPICOffProcessorID],
				PhysBase:    lapicBase,
				Window:      lapicWindow,
				LINT:        [2]uint32{apic.IMask, apic.IMask},
				MachNo:      -1,
			}
			if int(a.ID) > apic.MaxAPICNO {
				break
			}

			if p[table.LocalAPICOffFlags]&table.LocalAPICFlagEnabled != 0 {
				a.Flags |= apic.FlagEnabled
				a.MachNo = machno
				if machno == 0 {
					a.Flags |= apic.FlagBootProcessor
				}
				machno++
			}
			apics.SetLocal(a)
		case table.MADTEntryTypeIOAPIC:
			if len(p) < table.IOAPICMinLen {
				kfmt.Fprintf(e.Log, "short %s record (%d bytes); skipping\n", entry.Type, len(p))
				break
			}

			a := &apic.IOAPIC{
				ID:            p[table.IOAPICOffAPICID],
				PhysBase:      uint64(table.Get32(p[table.IOAPICOffAddress:])),
				GSIBase:       table.Get32(p[table.IOAPICOffGSIBase:]),
				MaxRedirEntry: apic.DefaultMaxRedirEntry,
				Flags:         apic.FlagEnabled,
			}
			if int(a.ID) > apic.MaxAPICNO {
				break
			}

			if a.Window, err = e.Mapper.Map(a.PhysBase, apicWindowSize); err != nil {
				kfmt.Fprintf(e.Log, "cannot map ioapic %d at 0x%x: %s\n", a.ID, a.PhysBase, err.Message)
				a.Window = nil
			}

			if e.APICDriver != nil {
				if err := e.APICDriver.InitIOAPIC(a); err != nil {
					kfmt.Fprintf(e.Log, "ioapic %d init failed: %s\n", a.ID, err.Message)
				}
			}
			apics.SetIO(a)
		case table.MADTEntryTypeIntSrcOverride:
			if len(p) < table.IntSrcOverrideMinLen {
				kfmt.Fprintf(e.Log, "short %s record (%d bytes); skipping\n", entry.Type, len(p))
				break
			}

			router.RegisterLine(
				table.Get32(p[table.IntSrcOverrideOffGSI:]),
				intr.BusISA,
				0,
				int(p[table.IntSrcOverrideOffSource]),
				table.Get16(p[table.IntSrcOverrideOffFlags:]),
			)
		default:
			if !entry.Type.Known() {
				kfmt.Fprintf(e.Log, "skipping unknown MADT record type 0x%x\n", uint8(entry.Type))
			}
		}

		return true
	})
}
