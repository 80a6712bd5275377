package cmdline

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	specs := []struct {
		input string
		exp   map[string]string
	}{
		{"", map[string]string{}},
		{"acpi=1", map[string]string{"acpi": "1"}},
		{"  acpi=1   nomp  ", map[string]string{"acpi": "1", "nomp": "nomp"}},
		{"acpi=1 bad=a=b", map[string]string{"acpi": "1"}},
		{"acpi=0 acpi=1", map[string]string{"acpi": "1"}},
	}

	for specIndex, spec := range specs {
		if got := Parse(spec.input); !reflect.DeepEqual(got, spec.exp) {
			t.Errorf("[spec %d] expected Parse(%q) to return %v; got %v", specIndex, spec.input, spec.exp, got)
		}
	}
}

func TestActiveCmdLine(t *testing.T) {
	defer Set("")

	Set("acpi=1 nomp=0 console=tty0")

	if v, ok := Get("console"); !ok || v != "tty0" {
		t.Fatalf("expected console=tty0; got %q (present: %t)", v, ok)
	}

	if _, ok := Get("missing"); ok {
		t.Fatal("expected missing key to be reported as absent")
	}

	specs := []struct {
		key string
		exp bool
	}{
		{"acpi", true},
		{"nomp", false},
		{"missing", false},
	}

	for _, spec := range specs {
		if got := Enabled(spec.key); got != spec.exp {
			t.Errorf("expected Enabled(%q) to return %t; got %t", spec.key, spec.exp, got)
		}
	}
}
