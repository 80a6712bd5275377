package luans

import (
	"acpitopo/device/acpi/aml"
	"acpitopo/device/pci"
	"reflect"
	"testing"
)

const testScript = `
pic_mode = -1

device("\\_SB.PCI0")
name("\\_SB.PCI0._BBN", 0)
method("\\_SB.PCI0._PRT", function()
	return {
		{0x0002ffff, 0, 0, 16},
		{0x0003ffff, 1, ref("\\_SB.LNKA"), 0},
		pkg(0x0004ffff, 2, nil, 18),
	}
end)

device("\\_SB.PCI0.RP01")
name("\\_SB.PCI0.RP01._ADR", 0x001c0000)
method("\\_SB.PCI0.RP01._PRT", function() return {} end)

method("\\_PIC", function(mode) pic_mode = mode end)
method("\\_SB.FAIL", function() error("boom") end)
name("\\_SB.STR_", "hello")

pci_device(0, 0x1c, 0, 2)
pci_device(2, 0, 0)

loaded_sig = ""
function load_table(sig, len)
	loaded_sig = sig
	loaded_len = len
end
`

func newTestNamespace(t *testing.T) *Namespace {
	ns := New()
	if err := ns.DoString(testScript); err != nil {
		t.Fatal(err)
	}
	return ns
}

func TestLookup(t *testing.T) {
	ns := newTestNamespace(t)
	defer ns.Close()

	prt := ns.Lookup(ns.Root(), `\_SB.PCI0._PRT`)
	if prt == nil {
		t.Fatal("expected to find _PRT")
	}

	if exp, got := `\_SB_.PCI0._PRT`, prt.Path(); got != exp {
		t.Fatalf("expected path %q; got %q", exp, got)
	}

	specs := []struct {
		path    string
		expPath string
	}{
		{"^_BBN", `\_SB_.PCI0._BBN`},
		{"^", `\_SB_.PCI0`},
		{"^^", `\_SB_`},
		{"^^^", `\`},
		{"^^^^", ""},
		{"^RP01._ADR", `\_SB_.PCI0.RP01._ADR`},
		{"^_ADR", ""},
		{`\_SB.STR`, `\_SB_.STR_`},
	}

	for specIndex, spec := range specs {
		obj := ns.Lookup(prt, spec.path)
		switch {
		case spec.expPath == "" && obj != nil:
			t.Errorf("[spec %d] expected lookup of %q to fail; got %s", specIndex, spec.path, obj.Path())
		case spec.expPath != "" && (obj == nil || obj.Path() != spec.expPath):
			t.Errorf("[spec %d] expected lookup of %q to return %s; got %v", specIndex, spec.path, spec.expPath, obj)
		}
	}
}

func TestEvaluate(t *testing.T) {
	ns := newTestNamespace(t)
	defer ns.Close()

	t.Run("method returning package", func(t *testing.T) {
		v, err := ns.Evaluate(ns.Lookup(nil, `\_SB.PCI0._PRT`))
		if err != nil {
			t.Fatal(err)
		}

		exp := aml.Package{
			aml.Package{aml.Integer(0x0002ffff), aml.Integer(0), aml.Integer(0), aml.Integer(16)},
			aml.Package{aml.Integer(0x0003ffff), aml.Integer(1), aml.Reference{Path: `\_SB.LNKA`}, aml.Integer(0)},
			aml.Package{aml.Integer(0x0004ffff), aml.Integer(2), nil, aml.Integer(18)},
		}

		if !reflect.DeepEqual(v, aml.Value(exp)) {
			t.Fatalf("expected %s; got %s", aml.Format(exp), aml.Format(v))
		}
	})

	t.Run("data objects", func(t *testing.T) {
		v, err := ns.Evaluate(ns.Lookup(nil, `\_SB.PCI0.RP01._ADR`))
		if err != nil || v != aml.Value(aml.Integer(0x001c0000)) {
			t.Fatalf("expected _ADR to evaluate to 0x1c0000; got %v (err %v)", v, err)
		}

		v, err = ns.Evaluate(ns.Lookup(nil, `\_SB.STR`))
		if err != nil || v != aml.Value(aml.String("hello")) {
			t.Fatalf("expected STR_ to evaluate to hello; got %v (err %v)", v, err)
		}
	})

	t.Run("method arguments", func(t *testing.T) {
		if _, err := ns.Evaluate(ns.Lookup(nil, `\_PIC`), aml.Integer(1)); err != nil {
			t.Fatal(err)
		}

		if got := ns.L.GetGlobal("pic_mode").String(); got != "1" {
			t.Fatalf("expected _PIC to receive mode 1; got %s", got)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := ns.Evaluate(ns.Lookup(nil, `\_SB.FAIL`)); err == nil {
			t.Fatal("expected a failing method to return an error")
		}

		if _, err := ns.Evaluate(nil); err != aml.ErrNotFound {
			t.Fatalf("expected ErrNotFound; got %v", err)
		}

		if _, err := ns.Evaluate(ns.Lookup(nil, `\_SB.PCI0`)); err != errNotCallable {
			t.Fatalf("expected errNotCallable; got %v", err)
		}
	})
}

func TestEnumerate(t *testing.T) {
	ns := newTestNamespace(t)
	defer ns.Close()

	var paths []string
	ns.Enumerate("_PRT", func(obj aml.Object) bool {
		paths = append(paths, obj.Path())
		return true
	})

	exp := []string{`\_SB_.PCI0._PRT`, `\_SB_.PCI0.RP01._PRT`}
	if !reflect.DeepEqual(paths, exp) {
		t.Fatalf("expected %v; got %v", exp, paths)
	}

	var visited int
	ns.Enumerate("_PRT", func(aml.Object) bool {
		visited++
		return false
	})

	if visited != 1 {
		t.Fatalf("expected enumeration to stop after the first object; visited %d", visited)
	}
}

func TestLoadAndPCI(t *testing.T) {
	ns := newTestNamespace(t)
	defer ns.Close()

	if err := ns.Load("DSDT", make([]byte, 128)); err != nil {
		t.Fatal(err)
	}

	if got := ns.L.GetGlobal("loaded_sig").String(); got != "DSDT" {
		t.Fatalf("expected load_table hook to receive DSDT; got %s", got)
	}

	if got := ns.L.GetGlobal("loaded_len").String(); got != "128" {
		t.Fatalf("expected load_table hook to receive length 128; got %s", got)
	}

	if !reflect.DeepEqual(ns.Loaded(), []string{"DSDT"}) {
		t.Fatalf("unexpected loaded list %v", ns.Loaded())
	}

	bridge := ns.PCI.FindByTBDF(pci.MkBus(pci.BusPCI, 0, 0x1c, 0))
	if bridge == nil || bridge.Bridge == nil || bridge.Bridge.TBDF.BusNo() != 2 {
		t.Fatal("expected script to register the bridge to bus 2")
	}

	if dev := ns.PCI.FindByTBDF(pci.MkBus(pci.BusPCI, 2, 0, 0)); dev == nil || dev.Bridge != nil {
		t.Fatal("expected script to register a plain device on bus 2")
	}
}

func TestScriptErrors(t *testing.T) {
	ns := New()
	defer ns.Close()

	if err := ns.DoString(`name("\\FOO", 1) name("\\FOO", 2)`); err == nil {
		t.Fatal("expected redefinition to fail")
	}

	if err := ns.DoFile("does-not-exist.lua"); err == nil {
		t.Fatal("expected missing script to fail")
	}
}
