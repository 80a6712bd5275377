package acpi

import (
	"acpitopo/device/acpi/table"
	"acpitopo/kernel/kfmt"
	"acpitopo/kernel/mm/physmem"
	"io"
)

// MapResult describes the outcome of an attempt to load the table at a
// physical address into the table cache.
type MapResult uint8

// The list of table load outcomes.
const (
	Accepted MapResult = iota
	BadAddress
	CapacityExhausted
	MapFailed
	ShortLength
	Duplicate
	ChecksumMismatch
)

// String implements fmt.Stringer.
func (r MapResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case BadAddress:
		return "bad address"
	case CapacityExhausted:
		return "table cache full"
	case MapFailed:
		return "map failed"
	case ShortLength:
		return "short length"
	case Duplicate:
		return "duplicate signature"
	case ChecksumMismatch:
		return "checksum mismatch"
	}
	return "unknown"
}

// MapReport records the outcome of loading a single table.
type MapReport struct {
	Addr   uint64
	Sig    string
	Length uint32
	Result MapResult
}

var (
	// maxPhysAddr is the highest physical address that can be used by an
	// x86-64 processor.
	maxPhysAddr uint64 = 1<<52 - 1

	// The number of bytes that must be mapped to read a table signature
	// and length.
	sizeofSigAndLength uint64 = 8
)

// treeBuilder walks the table tree rooted at the RSDT/XSDT and fills a
// private cache.
type treeBuilder struct {
	m      physmem.Mapper
	w      io.Writer
	cache  *table.Cache
	report []MapReport
}

func newTreeBuilder(m physmem.Mapper, w io.Writer) *treeBuilder {
	return &treeBuilder{
		m:     m,
		w:     w,
		cache: new(table.Cache),
	}
}

// build validates the root pointer and loads all tables reachable from it.
func (b *treeBuilder) build(rsdp *table.RSDPDescriptor) {
	if !rsdp.ValidV1() {
		kfmt.Fprintf(b.w, "RSD PTR checksum mismatch; ignoring RSDT\n")
	} else {
		b.mapTable(uint64(rsdp.RSDTAddr))
	}

	if rsdp.Revision < table.Rev2Plus {
		return
	}

	if !rsdp.ValidExt() {
		kfmt.Fprintf(b.w, "RSD PTR extended checksum mismatch; ignoring XSDT\n")
		return
	}

	b.mapTable(rsdp.XSDTAddr)
}

// mapTable loads the table at addr into the cache and follows any table
// pointers it contains. Tables whose signature is already cached are
// skipped which guarantees termination for cyclic table trees.
func (b *treeBuilder) mapTable(addr uint64) MapResult {
	rep := MapReport{Addr: addr}
	rep.Result = b.load(&rep)
	b.report = append(b.report, rep)

	if rep.Result != Accepted {
		if rep.Result != Duplicate {
			kfmt.Fprintf(b.w, "%4s at 0x%16x %6x [%s; skipping]\n", rep.Sig, addr, rep.Length, rep.Result)
		}
		return rep.Result
	}

	t := b.cache.Find(rep.Sig)
	switch rep.Sig {
	case table.SignatureRSDT:
		data := t.Data()
		for p := 0; p+3 < len(data); p += 4 {
			b.mapTable(uint64(table.Get32(data[p:])))
		}
	case table.SignatureXSDT:
		data := t.Data()
		for p := 0; p+7 < len(data); p += 8 {
			b.mapTable(table.Get64(data[p:]))
		}
	case table.SignatureFADT:
		// The FADT allows us to lookup the DSDT table address
		raw := t.Bytes()
		if len(raw) >= table.FADTMinLenDSDT {
			b.mapTable(uint64(table.Get32(raw[table.FADTOffDSDT:])))
		}
		if len(raw) >= table.FADTMinLenXDSDT {
			b.mapTable(table.Get64(raw[table.FADTOffXDSDT:]))
		}
	}

	return Accepted
}

func (b *treeBuilder) load(rep *MapReport) MapResult {
	if rep.Addr == 0 || rep.Addr > maxPhysAddr {
		return BadAddress
	}

	if b.cache.Full() {
		return CapacityExhausted
	}

	// Map the table header so we can access its signature and length
	w, err := b.m.Map(rep.Addr, sizeofSigAndLength)
	if err != nil {
		return MapFailed
	}
	rep.Sig = string(w.Bytes[0:4])
	rep.Length = table.Get32(w.Bytes[4:])
	b.m.Unmap(w)

	if rep.Length < table.HeaderLength {
		return ShortLength
	}

	if b.cache.Contains(rep.Sig) {
		return Duplicate
	}

	// Expand mapping to cover the table contents
	if w, err = b.m.Map(rep.Addr, uint64(rep.Length)); err != nil {
		return MapFailed
	}
	defer b.m.Unmap(w)

	if !table.Valid(w.Bytes) {
		return ChecksumMismatch
	}

	t, ok := table.NewTable(rep.Addr, w.Bytes)
	if !ok {
		return ShortLength
	}

	switch b.cache.Add(t) {
	case table.Duplicate:
		return Duplicate
	case table.Full:
		return CapacityExhausted
	}

	return Accepted
}
