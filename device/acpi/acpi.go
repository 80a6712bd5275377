// Package acpi discovers the ACPI firmware tables, derives the processor and
// interrupt-controller topology from the MADT and builds the bus/irq routing
// map that the interrupt code uses to program the I/O APICs.
package acpi

import (
	"acpitopo/device"
	"acpitopo/device/acpi/aml"
	"acpitopo/device/acpi/table"
	"acpitopo/device/apic"
	"acpitopo/device/intr"
	"acpitopo/device/pci"
	"acpitopo/kernel"
	"acpitopo/kernel/cmdline"
	"acpitopo/kernel/kfmt"
	"acpitopo/kernel/mm/physmem"
	"acpitopo/kernel/sync"
	"io"
)

var (
	// ErrNoRSDP is returned when no valid RSDP could be located. Callers
	// treat it as "ACPI not available".
	ErrNoRSDP = &kernel.Error{Module: "acpi", Message: "could not locate ACPI RSDP"}

	// ErrNoMADT is returned when the table tree does not contain a MADT.
	// Interrupt delivery cannot be configured without it.
	ErrNoMADT = &kernel.Error{Module: "acpi", Message: "no MADT table found; cannot configure interrupts"}
)

// Topology holds the results of a discovery pass.
type Topology struct {
	Tables *table.Cache
	APICs  *apic.Table
	Router *intr.Router
	Routes RouteReport
}

// Engine runs firmware discovery against a physical memory mapper. The zero
// value is not usable; Mapper must be set.
type Engine struct {
	Mapper physmem.Mapper

	// Interpreter evaluates the ACPI namespace. Without an interpreter
	// the PCI routing tables are not consulted.
	Interpreter aml.Interpreter

	// Bridges resolves PCI-to-PCI bridges while computing bus numbers.
	Bridges pci.BridgeFinder

	// APICDriver initializes the discovered I/O APICs.
	APICDriver apic.Driver

	// Log receives diagnostics.
	Log io.Writer

	mutex  sync.Spinlock
	tables *table.Cache
	report []MapReport
}

// RootPointer locates and decodes the RSDP.
func (e *Engine) RootPointer() (*table.RSDPDescriptor, *kernel.Error) {
	addr, found := Locate(e.Mapper, table.RSDPSignature)
	if !found {
		return nil, ErrNoRSDP
	}

	rsdp, ok := ReadRSDP(e.Mapper, addr)
	if !ok {
		return nil, ErrNoRSDP
	}

	return rsdp, nil
}

// BuildTables loads the tables reachable from rsdp into the table cache. It
// is a no-op if the cache has already been populated. Concurrent callers
// observe either an empty or a fully populated cache.
func (e *Engine) BuildTables(rsdp *table.RSDPDescriptor) *table.Cache {
	e.mutex.Acquire()
	defer e.mutex.Release()

	return e.buildTables(rsdp)
}

// buildTables must be called with e.mutex held.
func (e *Engine) buildTables(rsdp *table.RSDPDescriptor) *table.Cache {
	if e.tables != nil && e.tables.Len() != 0 {
		return e.tables
	}

	b := newTreeBuilder(e.Mapper, e.Log)
	b.build(rsdp)

	e.tables, e.report = b.cache, b.report
	return e.tables
}

// Tables returns the table cache, locating the RSDP and building the cache
// if required. The RSDP scan and the build run as a single pass under the
// engine lock, so concurrent callers trigger at most one of them.
func (e *Engine) Tables() (*table.Cache, *kernel.Error) {
	e.mutex.Acquire()
	defer e.mutex.Release()

	if e.tables != nil && e.tables.Len() != 0 {
		return e.tables, nil
	}

	rsdp, err := e.RootPointer()
	if err != nil {
		return nil, err
	}

	return e.buildTables(rsdp), nil
}

// SetLog redirects the engine diagnostics to w.
func (e *Engine) SetLog(w io.Writer) {
	e.mutex.Acquire()
	e.Log = w
	e.mutex.Release()
}

func (e *Engine) cached() *table.Cache {
	e.mutex.Acquire()
	defer e.mutex.Release()

	if e.tables != nil && e.tables.Len() != 0 {
		return e.tables
	}
	return nil
}

// Report returns the per-table outcomes of the last table tree build.
func (e *Engine) Report() []MapReport {
	e.mutex.Acquire()
	defer e.mutex.Release()

	return e.report
}

// Discover runs the complete discovery pipeline: it builds the table cache,
// loads the namespace, parses the MADT, resolves the PCI routing tables and
// finally identity maps the legacy ISA interrupts that have not been
// overridden.
func (e *Engine) Discover() (*Topology, *kernel.Error) {
	cache, err := e.Tables()
	if err != nil {
		return nil, err
	}

	if e.Interpreter != nil {
		defer e.Interpreter.Close()
	}

	e.loadNamespace(cache)

	madt := cache.Find(table.SignatureMADT)
	if madt == nil {
		return nil, ErrNoMADT
	}

	topo := &Topology{
		Tables: cache,
		APICs:  new(apic.Table),
	}
	topo.Router = intr.NewRouter(topo.APICs, e.Log)

	e.parseMADT(madt, topo.APICs, topo.Router)

	if e.Interpreter != nil {
		topo.Routes = ResolveRoutes(e.Interpreter, e.Bridges, topo.Router, e.Log)
	}

	topo.Router.RegisterLegacyISA()

	return topo, nil
}

type acpiDriver struct {
	engine *Engine

	// useTopology is cleared when the command line asks for the tables
	// to be exported without using them for interrupt routing.
	useTopology bool

	topology *Topology
}

// DriverInit initializes this driver.
func (drv *acpiDriver) DriverInit(w io.Writer) *kernel.Error {
	drv.engine.SetLog(w)

	if !drv.useTopology {
		if _, err := drv.engine.Tables(); err != nil {
			return err
		}
		drv.printTableInfo(w)
		kfmt.Fprintf(w, "not used for interrupt routing\n")
		return nil
	}

	topo, err := drv.engine.Discover()
	if topo != nil {
		drv.topology = topo
	}

	drv.printTableInfo(w)
	if err != nil {
		return err
	}

	kfmt.Fprintf(w, "%d processors, %d I/O APICs, %d buses\n",
		len(topo.APICs.Processors()),
		len(topo.APICs.IOAPICs()),
		len(topo.Router.Buses()),
	)

	return nil
}

// Topology returns the topology built by DriverInit. It is nil if the
// driver was not used for interrupt routing.
func (drv *acpiDriver) Topology() *Topology {
	return drv.topology
}

// DriverName returns the name of this driver.
func (*acpiDriver) DriverName() string {
	return "ACPI"
}

// DriverVersion returns the version of this driver.
func (*acpiDriver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

func (drv *acpiDriver) printTableInfo(w io.Writer) {
	cache := drv.engine.cached()
	if cache == nil {
		return
	}

	for _, t := range cache.Tables() {
		kfmt.Fprintf(w, "%4s at 0x%16x %6x (%6s %8s)\n",
			t.Sig(),
			t.Addr,
			t.Length,
			string(t.OEMID[:]),
			string(t.OEMTableID[:]),
		)
	}
}

// DefaultEngine is the discovery engine used by the registered driver and
// by ReadTables. Its mapper must be set before the hardware is probed.
var DefaultEngine = &Engine{}

func probeForACPI() device.Driver {
	acpi, set := cmdline.Get("acpi")
	if !set || DefaultEngine.Mapper == nil {
		return nil
	}

	if _, found := Locate(DefaultEngine.Mapper, table.RSDPSignature); !found {
		return nil
	}

	return &acpiDriver{
		engine:      DefaultEngine,
		useTopology: acpi != "0" && !cmdline.Enabled("nomp"),
	}
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderACPI,
		Probe: probeForACPI,
	})
}
