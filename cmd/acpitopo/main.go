// Command acpitopo discovers the ACPI tables of the running machine (or of a
// set of memory images), derives the processor and interrupt topology and
// prints it.
package main

import (
	"acpitopo/device/acpi"
	"acpitopo/device/acpi/aml/luans"
	"acpitopo/kernel/cmdline"
	"acpitopo/kernel/hal"
	"acpitopo/kernel/kfmt"
	"acpitopo/kernel/mm/physmem"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/profile"
	"golang.org/x/term"
)

var (
	errNoTopology = errors.New("no interrupt topology discovered")
	errTerminal   = errors.New("refusing to write binary table dump to a terminal")

	isTerminalFn = func(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }
)

func main() {
	os.Exit(realMain(os.Args, os.Stdout, os.Stderr))
}

func realMain(args []string, stdout *os.File, stderr io.Writer) int {
	cfg, err := ParseArgs(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "acpitopo: %v\n", err)
		return 2
	}

	if cfg.ProfileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.ProfileDir), profile.Quiet).Stop()
	}

	if err := run(cfg, stdout); err != nil {
		fmt.Fprintf(stderr, "acpitopo: %v\n", err)
		return 1
	}

	return 0
}

// openMapper returns the physical memory mapper selected by cfg and a
// function that releases it.
func openMapper(cfg *Config) (physmem.Mapper, func(), error) {
	if len(cfg.Regions) == 0 {
		mem, err := physmem.OpenDevMem(cfg.MemPath)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() { mem.Close() }, nil
	}

	img := physmem.NewImage()
	for _, r := range cfg.Regions {
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, nil, err
		}

		if kerr := img.AddRegion(r.Base, data); kerr != nil {
			return nil, nil, fmt.Errorf("%s at 0x%x: %w", r.Path, r.Base, kerr)
		}
	}

	return img, func() {}, nil
}

func run(cfg *Config, stdout *os.File) error {
	mapper, release, err := openMapper(cfg)
	if err != nil {
		return err
	}
	defer release()

	engine := &acpi.Engine{Mapper: mapper}
	if cfg.Script != "" {
		ns := luans.New()
		if kerr := ns.DoFile(cfg.Script); kerr != nil {
			ns.Close()
			return kerr
		}
		engine.Interpreter = ns
		engine.Bridges = &ns.PCI
	}

	if cfg.Dump != "" {
		if engine.Interpreter != nil {
			defer engine.Interpreter.Close()
		}
		return dump(engine, cfg, stdout)
	}

	acpi.DefaultEngine = engine
	cmdline.Set(cfg.CmdLine)
	kfmt.SetOutputSink(stdout)

	hal.DetectHardware()

	topo := hal.Topology()
	if topo == nil {
		return errNoTopology
	}

	printTopology(stdout, topo)
	return nil
}

// dump writes the requested range of the raw table stream to the dump
// target.
func dump(engine *acpi.Engine, cfg *Config, stdout *os.File) error {
	var out *os.File
	switch cfg.Dump {
	case "-":
		if isTerminalFn(stdout) {
			return errTerminal
		}
		out = stdout
	default:
		f, err := os.Create(cfg.Dump)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	cache, kerr := engine.Tables()
	if kerr != nil {
		return kerr
	}

	length := int64(cfg.Length)
	if length == 0 {
		length = cache.TotalSize()
	}

	_, err := io.Copy(out, io.NewSectionReader(engine, cfg.Offset, length))
	return err
}

func printTopology(w io.Writer, topo *acpi.Topology) {
	kfmt.Fprintf(w, "processors:\n")
	for _, p := range topo.APICs.Processors() {
		var bsp string
		if p.BootProcessor() {
			bsp = " [bsp]"
		}

		if !p.Enabled() {
			kfmt.Fprintf(w, "  apic %3d proc %3d disabled\n", p.ID, p.ProcessorID)
			continue
		}
		kfmt.Fprintf(w, "  apic %3d proc %3d machno %d%s\n", p.ID, p.ProcessorID, p.MachNo, bsp)
	}

	kfmt.Fprintf(w, "ioapics:\n")
	for _, ioa := range topo.APICs.IOAPICs() {
		kfmt.Fprintf(w, "  ioapic %3d at 0x%x gsi %d-%d\n", ioa.ID, ioa.PhysBase, ioa.GSIBase, ioa.GSIBase+ioa.MaxRedirEntry)
	}

	kfmt.Fprintf(w, "buses:\n")
	for _, bus := range topo.Router.Buses() {
		kfmt.Fprintf(w, "  %s %d (%s/%s)\n", bus.Type, bus.Number, bus.Polarity, bus.Trigger)
		for _, m := range bus.Mappings() {
			kfmt.Fprintf(w, "    irq %3d -> ioapic %d intin %2d %s/%s\n", m.IRQ, m.APIC, m.Intin, m.Polarity(), m.Trigger())
		}
	}

	r := topo.Routes
	kfmt.Fprintf(w, "pci routing: %d/%d tables resolved, %d routes, %d link entries skipped\n",
		r.Resolved, r.Objects, r.Registered, r.LinkEntries)
}
