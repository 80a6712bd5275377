// Package aml defines the capability interface through which the acpi driver
// talks to an ACPI namespace interpreter. The driver only needs to load
// definition blocks, walk the namespace and evaluate objects; how method
// bodies are executed is up to the implementation.
package aml

import (
	"acpitopo/kernel"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when evaluating a nil object.
	ErrNotFound = &kernel.Error{Module: "aml", Message: "object not found"}
)

// Object is a node in the ACPI namespace.
type Object interface {
	// Name returns the 4-character name segment of the object.
	Name() string

	// Path returns the fully qualified path of the object.
	Path() string
}

// Value is the result of evaluating an object. It is one of Integer,
// String, Reference or Package. A nil Value denotes the absence of a value.
type Value interface {
	amlValue()
}

// Integer is an AML integer.
type Integer uint64

// String is an AML string.
type String string

// Reference is a reference to a named object.
type Reference struct {
	Path string
}

// Package is an ordered list of values.
type Package []Value

func (Integer) amlValue()   {}
func (String) amlValue()    {}
func (Reference) amlValue() {}
func (Package) amlValue()   {}

// String implements fmt.Stringer.
func (r Reference) String() string { return "ref(" + r.Path + ")" }

// ToInteger returns the integer held by v. It returns false if v is not an
// Integer.
func ToInteger(v Value) (uint64, bool) {
	i, ok := v.(Integer)
	return uint64(i), ok
}

// Format renders a value for diagnostics.
func Format(v Value) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case Integer:
		return fmt.Sprintf("0x%x", uint64(t))
	case String:
		return fmt.Sprintf("%q", string(t))
	case Reference:
		return t.String()
	case Package:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Format(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "?"
}

// Interpreter is implemented by ACPI namespace interpreters.
type Interpreter interface {
	// Load parses a definition block (the payload of a DSDT or SSDT) and
	// merges its objects into the namespace.
	Load(sig string, aml []byte) *kernel.Error

	// Root returns the root scope of the namespace.
	Root() Object

	// Lookup resolves path relative to obj. A leading '\' makes the path
	// absolute and each leading '^' moves one scope up. It returns nil if
	// the object does not exist.
	Lookup(obj Object, path string) Object

	// Evaluate evaluates obj with the supplied arguments. Data objects
	// evaluate to their value, methods are invoked.
	Evaluate(obj Object, args ...Value) (Value, *kernel.Error)

	// Enumerate visits, in namespace order, every object whose name
	// matches name. The walk stops if fn returns false.
	Enumerate(name string, fn func(Object) bool)

	// Close releases the resources held by the interpreter.
	Close()
}

// NameSeg normalizes a name segment to the 4-character form used by the
// namespace by padding it with underscores.
func NameSeg(seg string) string {
	for len(seg) < 4 {
		seg += "_"
	}
	return seg
}

// SplitPath breaks a namespace path into its components: whether it is
// absolute, the number of leading parent prefixes and the normalized name
// segments.
func SplitPath(path string) (absolute bool, up int, segs []string) {
	if strings.HasPrefix(path, `\`) {
		absolute = true
		path = path[1:]
	}

	for strings.HasPrefix(path, "^") {
		up++
		path = path[1:]
	}

	if path == "" {
		return absolute, up, nil
	}

	for _, seg := range strings.Split(path, ".") {
		segs = append(segs, NameSeg(seg))
	}

	return absolute, up, segs
}
