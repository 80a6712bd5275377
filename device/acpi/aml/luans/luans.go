// Package luans implements an ACPI namespace interpreter whose objects are
// declared by a Lua script. It stands in for a bytecode interpreter on hosts
// where the firmware namespace is described rather than executed, e.g. when
// replaying a captured machine description.
//
// The script builds the namespace with the following functions:
//
//	device(path)               create a scope (and any missing parents)
//	name(path, value)          define a data object
//	method(path, fn)           define a method; fn receives the call args
//	ref(path)                  build a reference to a named object
//	pkg(...)                   build a package; null arguments are kept
//	pci_device(bus, dev, fn [, secondary])
//	                           record an enumerated PCI function; passing
//	                           secondary records a PCI-to-PCI bridge
//
// Lua numbers evaluate to Integer, strings to String, tables (arrays) to
// Package and the global null to a nil value.
package luans

import (
	"acpitopo/device/acpi/aml"
	"acpitopo/device/pci"
	"acpitopo/kernel"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

var (
	errScript       = &kernel.Error{Module: "luans", Message: "namespace script failed"}
	errNotCallable  = &kernel.Error{Module: "luans", Message: "object has no value"}
	errMethodFailed = &kernel.Error{Module: "luans", Message: "method evaluation failed"}
	errBadValue     = &kernel.Error{Module: "luans", Message: "unsupported lua value"}
)

// node is a namespace object.
type node struct {
	name     string
	parent   *node
	children []*node

	value  lua.LValue
	method *lua.LFunction
}

// Name implements aml.Object.
func (n *node) Name() string { return n.name }

// Path implements aml.Object.
func (n *node) Path() string {
	if n.parent == nil {
		return `\`
	}

	var segs []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		segs = append([]string{cur.name}, segs...)
	}
	return `\` + strings.Join(segs, ".")
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// refType tags userdata values created by ref().
type refType struct {
	path string
}

// nullType tags the userdata bound to the null global.
type nullType struct{}

// Namespace is a Lua-backed aml.Interpreter.
type Namespace struct {
	L    *lua.LState
	root *node

	// PCI collects the devices declared by the script.
	PCI pci.Registry

	loaded []string
}

// New creates an empty namespace with the script API installed.
func New() *Namespace {
	ns := &Namespace{
		L:    lua.NewState(),
		root: &node{name: `\`},
	}

	ns.L.SetGlobal("device", ns.L.NewFunction(ns.luaDevice))
	ns.L.SetGlobal("name", ns.L.NewFunction(ns.luaName))
	ns.L.SetGlobal("method", ns.L.NewFunction(ns.luaMethod))
	ns.L.SetGlobal("ref", ns.L.NewFunction(ns.luaRef))
	ns.L.SetGlobal("pkg", ns.L.NewFunction(ns.luaPkg))
	ns.L.SetGlobal("pci_device", ns.L.NewFunction(ns.luaPCIDevice))

	null := ns.L.NewUserData()
	null.Value = nullType{}
	ns.L.SetGlobal("null", null)

	return ns
}

// DoString runs a namespace script.
func (ns *Namespace) DoString(src string) *kernel.Error {
	if err := ns.L.DoString(src); err != nil {
		return &kernel.Error{Module: errScript.Module, Message: errScript.Message + ": " + err.Error()}
	}
	return nil
}

// DoFile runs the namespace script at path.
func (ns *Namespace) DoFile(path string) *kernel.Error {
	if err := ns.L.DoFile(path); err != nil {
		return &kernel.Error{Module: errScript.Module, Message: errScript.Message + ": " + err.Error()}
	}
	return nil
}

// Loaded returns the signatures of the definition blocks passed to Load.
func (ns *Namespace) Loaded() []string {
	return ns.loaded
}

// Load implements aml.Interpreter. The definition block contents are not
// executed; if the script defines a global load_table function it is invoked
// with the table signature and payload length.
func (ns *Namespace) Load(sig string, block []byte) *kernel.Error {
	ns.loaded = append(ns.loaded, sig)

	fn, ok := ns.L.GetGlobal("load_table").(*lua.LFunction)
	if !ok {
		return nil
	}

	if err := ns.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, lua.LString(sig), lua.LNumber(len(block))); err != nil {
		return &kernel.Error{Module: errScript.Module, Message: errScript.Message + ": " + err.Error()}
	}
	return nil
}

// Root implements aml.Interpreter.
func (ns *Namespace) Root() aml.Object {
	return ns.root
}

// Lookup implements aml.Interpreter.
func (ns *Namespace) Lookup(obj aml.Object, path string) aml.Object {
	start, _ := obj.(*node)
	if n := ns.walk(start, path); n != nil {
		return n
	}
	return nil
}

func (ns *Namespace) walk(start *node, path string) *node {
	absolute, up, segs := aml.SplitPath(path)

	cur := start
	if absolute || cur == nil {
		cur = ns.root
	}

	for ; up > 0; up-- {
		if cur.parent == nil {
			return nil
		}
		cur = cur.parent
	}

	for _, seg := range segs {
		if cur = cur.child(seg); cur == nil {
			return nil
		}
	}

	return cur
}

// create walks path from the root creating any missing scopes.
func (ns *Namespace) create(path string) *node {
	_, _, segs := aml.SplitPath(path)

	cur := ns.root
	for _, seg := range segs {
		next := cur.child(seg)
		if next == nil {
			next = &node{name: seg, parent: cur}
			cur.children = append(cur.children, next)
		}
		cur = next
	}

	return cur
}

// Evaluate implements aml.Interpreter.
func (ns *Namespace) Evaluate(obj aml.Object, args ...aml.Value) (aml.Value, *kernel.Error) {
	n, ok := obj.(*node)
	if !ok || n == nil {
		return nil, aml.ErrNotFound
	}

	switch {
	case n.method != nil:
		luaArgs := make([]lua.LValue, len(args))
		for i, arg := range args {
			luaArgs[i] = ns.toLua(arg)
		}

		if err := ns.L.CallByParam(lua.P{Fn: n.method, NRet: 1, Protect: true}, luaArgs...); err != nil {
			return nil, &kernel.Error{Module: errMethodFailed.Module, Message: errMethodFailed.Message + ": " + n.Path() + ": " + err.Error()}
		}

		ret := ns.L.Get(-1)
		ns.L.Pop(1)
		return fromLua(ret)
	case n.value != nil:
		return fromLua(n.value)
	}

	return nil, errNotCallable
}

// Enumerate implements aml.Interpreter. Objects are visited depth-first in
// definition order.
func (ns *Namespace) Enumerate(name string, fn func(aml.Object) bool) {
	ns.visit(ns.root, aml.NameSeg(name), fn)
}

func (ns *Namespace) visit(n *node, name string, fn func(aml.Object) bool) bool {
	if n.parent != nil && n.name == name && !fn(n) {
		return false
	}

	for _, c := range n.children {
		if !ns.visit(c, name, fn) {
			return false
		}
	}

	return true
}

// Close implements aml.Interpreter.
func (ns *Namespace) Close() {
	ns.L.Close()
}

func fromLua(v lua.LValue) (aml.Value, *kernel.Error) {
	switch t := v.(type) {
	case lua.LNumber:
		return aml.Integer(uint64(int64(t))), nil
	case lua.LString:
		return aml.String(string(t)), nil
	case lua.LBool:
		if t {
			return aml.Integer(1), nil
		}
		return aml.Integer(0), nil
	case *lua.LNilType:
		return nil, nil
	case *lua.LUserData:
		switch ud := t.Value.(type) {
		case refType:
			return aml.Reference{Path: ud.path}, nil
		case nullType:
			return nil, nil
		}
	case *lua.LTable:
		pkg := make(aml.Package, t.Len())
		for i := range pkg {
			elem, err := fromLua(t.RawGetInt(i + 1))
			if err != nil {
				return nil, err
			}
			pkg[i] = elem
		}
		return pkg, nil
	}

	return nil, errBadValue
}

func (ns *Namespace) toLua(v aml.Value) lua.LValue {
	switch t := v.(type) {
	case aml.Integer:
		return lua.LNumber(t)
	case aml.String:
		return lua.LString(t)
	case aml.Reference:
		ud := ns.L.NewUserData()
		ud.Value = refType{path: t.Path}
		return ud
	case aml.Package:
		tbl := ns.L.NewTable()
		for _, e := range t {
			tbl.Append(ns.toLua(e))
		}
		return tbl
	}
	return ns.L.GetGlobal("null")
}

func (ns *Namespace) luaDevice(L *lua.LState) int {
	ns.create(L.CheckString(1))
	return 0
}

func (ns *Namespace) luaName(L *lua.LState) int {
	n := ns.create(L.CheckString(1))
	if n.method != nil || n.value != nil {
		L.RaiseError("%s already defined", n.Path())
		return 0
	}
	n.value = L.CheckAny(2)
	return 0
}

func (ns *Namespace) luaMethod(L *lua.LState) int {
	n := ns.create(L.CheckString(1))
	if n.method != nil || n.value != nil {
		L.RaiseError("%s already defined", n.Path())
		return 0
	}
	n.method = L.CheckFunction(2)
	return 0
}

func (ns *Namespace) luaRef(L *lua.LState) int {
	ud := L.NewUserData()
	ud.Value = refType{path: L.CheckString(1)}
	L.Push(ud)
	return 1
}

// luaPkg collects its arguments into an array table. Lua tables cannot hold
// nil so absent arguments are replaced with the null sentinel.
func (ns *Namespace) luaPkg(L *lua.LState) int {
	tbl := L.NewTable()
	null := L.GetGlobal("null")
	for i := 1; i <= L.GetTop(); i++ {
		v := L.Get(i)
		if v == lua.LNil {
			v = null
		}
		tbl.Append(v)
	}
	L.Push(tbl)
	return 1
}

func (ns *Namespace) luaPCIDevice(L *lua.LState) int {
	busno, devno, fnno := L.CheckInt(1), L.CheckInt(2), L.CheckInt(3)
	if L.GetTop() >= 4 {
		ns.PCI.AddBridge(busno, devno, fnno, L.CheckInt(4))
		return 0
	}

	ns.PCI.Add(&pci.Device{TBDF: pci.MkBus(pci.BusPCI, busno, devno, fnno)})
	return 0
}
