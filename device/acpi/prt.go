package acpi

import (
	"acpitopo/device/acpi/aml"
	"acpitopo/device/intr"
	"acpitopo/device/pci"
	"acpitopo/kernel/kfmt"
	"io"
)

// prtEntryLen is the number of elements in each _PRT package entry:
// address, pin, source and source index.
const prtEntryLen = 4

// RouteReport summarizes a PCI interrupt routing pass.
type RouteReport struct {
	// Objects is the number of _PRT objects visited; Resolved and
	// Failed split them by whether their bus number could be resolved
	// and their routing table evaluated.
	Objects  int
	Resolved int
	Failed   int

	// Outcomes of the individual routing entries.
	Registered    int
	AlreadyMapped int
	NoController  int
	LinkEntries   int
	Malformed     int
}

// routeResolver feeds the _PRT routing tables of the namespace into a
// router.
type routeResolver struct {
	ns      aml.Interpreter
	bridges pci.BridgeFinder
	router  *intr.Router
	w       io.Writer
	report  RouteReport
}

// ResolveRoutes evaluates every _PRT object in namespace order and registers
// the PCI interrupt routes it describes with router. A failure to resolve one
// object is logged and does not affect the others.
func ResolveRoutes(ns aml.Interpreter, bridges pci.BridgeFinder, router *intr.Router, w io.Writer) RouteReport {
	r := &routeResolver{
		ns:      ns,
		bridges: bridges,
		router:  router,
		w:       w,
	}

	ns.Enumerate("_PRT", func(obj aml.Object) bool {
		r.report.Objects++
		if r.enumPRT(obj) {
			r.report.Resolved++
		} else {
			r.report.Failed++
		}
		return true
	})

	return r.report
}

func (r *routeResolver) enumPRT(obj aml.Object) bool {
	bno, ok := r.pciBusNo(obj)
	if !ok {
		kfmt.Fprintf(r.w, "enumprt: cannot get pci bus number for %s\n", obj.Path())
		return false
	}

	v, err := r.ns.Evaluate(obj)
	if err != nil {
		kfmt.Fprintf(r.w, "enumprt: %s: %s\n", obj.Path(), err.Message)
		return false
	}

	entries, ok := v.(aml.Package)
	if !ok {
		kfmt.Fprintf(r.w, "enumprt: %s did not return a package: %s\n", obj.Path(), aml.Format(v))
		return false
	}

	for _, e := range entries {
		entry, ok := e.(aml.Package)
		if !ok || len(entry) != prtEntryLen {
			r.report.Malformed++
			continue
		}

		if linked(entry[2]) {
			kfmt.Fprintf(r.w, "enumprt: interrupt link not handled %s\n", aml.Format(entry[2]))
			r.report.LinkEntries++
			continue
		}

		adr, adrOK := aml.ToInteger(entry[0])
		pin, pinOK := aml.ToInteger(entry[1])
		gsi, gsiOK := aml.ToInteger(entry[3])
		if !adrOK || !pinOK || !gsiOK {
			r.report.Malformed++
			continue
		}

		switch r.router.RegisterLine(uint32(gsi), intr.BusPCI, bno, PCIIRQ(adr, pin), 0) {
		case intr.Registered:
			r.report.Registered++
		case intr.AlreadyMapped:
			r.report.AlreadyMapped++
		case intr.NoController:
			r.report.NoController++
		}
	}

	return true
}

// linked reports whether the source element of a _PRT entry refers to an
// interrupt link device instead of a hardwired global system interrupt.
func linked(source aml.Value) bool {
	switch v := source.(type) {
	case nil:
		return false
	case aml.Integer:
		return v != 0
	}
	return true
}

// PCIIRQ returns the bus-relative irq number that identifies the interrupt
// pin of the PCI device whose _ADR is adr.
func PCIIRQ(adr, pin uint64) int {
	return int(adr>>16)<<2 | int(pin&0x3)
}

// pciBusNo returns the PCI bus number for the scope that contains obj. A
// _BBN object is used if present; otherwise the bus number is derived from
// the bridge that the scope's _ADR identifies on the parent bus.
func (r *routeResolver) pciBusNo(obj aml.Object) (int, bool) {
	if bbn := r.ns.Lookup(obj, "^_BBN"); bbn != nil {
		return r.evalInt(bbn)
	}

	adrObj := r.ns.Lookup(obj, "^_ADR")
	if adrObj == nil {
		return -1, false
	}

	adr, ok := r.evalInt(adrObj)
	if !ok {
		return -1, false
	}

	parent := r.ns.Lookup(obj, "^")
	if parent == nil || parent.Path() == obj.Path() {
		return -1, false
	}

	bno, ok := r.pciBusNo(parent)
	if !ok {
		return -1, false
	}

	if r.bridges == nil {
		return -1, false
	}

	tbdf := pci.MkBus(pci.BusPCI, bno, adr>>16, adr&0xffff)
	dev := r.bridges.FindByTBDF(tbdf)
	if dev == nil || dev.Bridge == nil {
		kfmt.Fprintf(r.w, "pcibusno: bridge tbdf %s not found\n", tbdf)
		return -1, false
	}

	return dev.Bridge.TBDF.BusNo(), true
}

func (r *routeResolver) evalInt(obj aml.Object) (int, bool) {
	v, err := r.ns.Evaluate(obj)
	if err != nil {
		kfmt.Fprintf(r.w, "%s: %s\n", obj.Path(), err.Message)
		return -1, false
	}

	n, ok := aml.ToInteger(v)
	return int(n), ok
}
