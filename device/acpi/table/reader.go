package table

import "encoding/binary"

// Get16 decodes a little-endian uint16 at the start of b.
func Get16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

// Get32 decodes a little-endian uint32 at the start of b.
func Get32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// Get64 decodes a little-endian uint64 at the start of b.
func Get64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// Checksum returns the sum of all bytes in b modulo 256.
func Checksum(b []byte) uint8 {
	var sum uint8
	for _, v := range b {
		sum += v
	}

	return sum
}

// Valid reports whether the bytes in b sum up to zero.
func Valid(b []byte) bool {
	return Checksum(b) == 0
}

// RSDPDescriptor defines the root system descriptor pointer. This is used as
// the entry-point for parsing ACPI data. The extended fields are only
// populated for ACPI 2.0+ descriptors.
type RSDPDescriptor struct {
	OEMID [6]byte

	// ACPI revision number. It is 0 for ACPI1.0 and 2 for versions 2.0+.
	Revision uint8

	// Physical address of 32-bit root system descriptor table.
	RSDTAddr uint32

	// The size of the descriptor (ACPI 2.0+).
	Length uint32

	// Physical address of 64-bit root system descriptor table (ACPI 2.0+).
	XSDTAddr uint64

	raw []byte
}

// ParseRSDP decodes a root system descriptor pointer from b. It returns false
// if b does not start with the RSDP signature or is too short to hold an
// ACPI 1.0 descriptor. The descriptor keeps a copy of the raw bytes so that
// its checksums can be verified.
func ParseRSDP(b []byte) (*RSDPDescriptor, bool) {
	if len(b) < RSDPLength || string(b[:len(RSDPSignature)]) != RSDPSignature {
		return nil, false
	}

	rsdp := &RSDPDescriptor{
		Revision: b[rsdpOffRevision],
		RSDTAddr: Get32(b[rsdpOffRSDTAddr:]),
	}
	copy(rsdp.OEMID[:], b[rsdpOffOEMID:])

	n := RSDPLength
	if len(b) >= ExtRSDPLength {
		rsdp.Length = Get32(b[rsdpOffLength:])
		rsdp.XSDTAddr = Get64(b[rsdpOffXSDTAddr:])
		n = ExtRSDPLength
	}

	rsdp.raw = append([]byte(nil), b[:n]...)
	return rsdp, true
}

// ValidV1 reports whether the checksum over the first 20 bytes is valid.
func (r *RSDPDescriptor) ValidV1() bool {
	return Valid(r.raw[:RSDPLength])
}

// ValidExt reports whether the descriptor is an ACPI 2.0+ descriptor with a
// valid extended checksum over its first 36 bytes.
func (r *RSDPDescriptor) ValidExt() bool {
	return r.Revision >= Rev2Plus && len(r.raw) >= ExtRSDPLength && Valid(r.raw[:ExtRSDPLength])
}

// SDTHeader defines the common header for all ACPI-related tables.
type SDTHeader struct {
	// The signature defines the table type.
	Signature [4]byte

	// The length of the table including the header.
	Length uint32

	// If this header belongs to a DSDT/SSDT table, the revision is also
	// used to indicate whether integers are 32-bits (revision < 2) or
	// 64-bits (revision >= 2).
	Revision uint8

	// A value that when added to the sum of all other bytes in the table
	// should result in the value 0.
	Checksum uint8

	// OEM specific information
	OEMID       [6]byte
	OEMTableID  [8]byte
	OEMRevision uint32

	// Information about the ASL compiler that generated this table
	CreatorID       [4]byte
	CreatorRevision uint32
}

// ParseHeader decodes a standard table header. It returns false if b is
// shorter than HeaderLength.
func ParseHeader(b []byte) (SDTHeader, bool) {
	var h SDTHeader
	if len(b) < HeaderLength {
		return h, false
	}

	copy(h.Signature[:], b[0:4])
	h.Length = Get32(b[4:])
	h.Revision = b[8]
	h.Checksum = b[9]
	copy(h.OEMID[:], b[10:16])
	copy(h.OEMTableID[:], b[16:24])
	h.OEMRevision = Get32(b[24:])
	copy(h.CreatorID[:], b[28:32])
	h.CreatorRevision = Get32(b[32:])

	return h, true
}

// Table is a validated copy of an ACPI description table.
type Table struct {
	SDTHeader

	// Addr is the physical address the table was loaded from.
	Addr uint64

	raw []byte
}

// NewTable wraps a copy of the table image in b. The caller is responsible
// for validating b before calling NewTable; it returns false if b is too
// short to contain a header or shorter than the length the header declares.
func NewTable(addr uint64, b []byte) (*Table, bool) {
	h, ok := ParseHeader(b)
	if !ok || h.Length < HeaderLength || uint64(len(b)) < uint64(h.Length) {
		return nil, false
	}

	return &Table{
		SDTHeader: h,
		Addr:      addr,
		raw:       append([]byte(nil), b[:h.Length]...),
	}, true
}

// Sig returns the table signature as a string.
func (t *Table) Sig() string {
	return string(t.Signature[:])
}

// Bytes returns the complete table image including the header. Callers must
// not modify the returned slice.
func (t *Table) Bytes() []byte {
	return t.raw
}

// Data returns the table payload that follows the standard header.
func (t *Table) Data() []byte {
	return t.raw[HeaderLength:]
}

// VisitMADTEntries invokes fn for each record in a MADT record stream. The
// walk stops when fewer than 2 bytes remain, when a record declares a length
// smaller than 2 or when a record would extend past the end of the stream;
// records visited before that point remain valid. The walk also stops if fn
// returns false. VisitMADTEntries returns the number of bytes consumed.
func VisitMADTEntries(stream []byte, fn func(MADTEntry) bool) int {
	var off int
	for len(stream)-off >= 2 {
		recLen := int(stream[off+1])
		if recLen < 2 || off+recLen > len(stream) {
			break
		}

		entry := MADTEntry{
			Type:    MADTEntryType(stream[off]),
			Length:  uint8(recLen),
			Payload: stream[off : off+recLen],
		}
		off += recLen

		if !fn(entry) {
			break
		}
	}

	return off
}
