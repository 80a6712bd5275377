// Package table decodes the ACPI firmware description tables that the acpi
// driver discovers and keeps the validated copies in a fixed-capacity cache.
//
// All multi-byte fields are little-endian. Tables are decoded from byte
// slices instead of being overlaid on memory so that truncated or corrupted
// firmware data can never cause an out-of-bounds access.
package table

// Root system description pointer (RSDP) layout.
const (
	// RSDPSignature is found at the start of the RSDP. The last byte is a
	// space.
	RSDPSignature = "RSD PTR "

	// RSDPLength is the number of bytes covered by the ACPI 1.0
	// checksum.
	RSDPLength = 20

	// ExtRSDPLength is the number of bytes covered by the extended
	// checksum of ACPI 2.0+ descriptors.
	ExtRSDPLength = 36

	rsdpOffRevision = 15
	rsdpOffRSDTAddr = 16
	rsdpOffLength   = 20
	rsdpOffXSDTAddr = 24
	rsdpOffOEMID    = 9
)

// ACPI revisions reported by the RSDP.
const (
	Rev1     uint8 = 0
	Rev2Plus uint8 = 2
)

// HeaderLength is the size of the standard header shared by all description
// tables.
const HeaderLength = 36

// Well-known table signatures.
const (
	SignatureRSDT = "RSDT"
	SignatureXSDT = "XSDT"
	SignatureFADT = "FACP"
	SignatureDSDT = "DSDT"
	SignatureSSDT = "SSDT"
	SignatureMADT = "APIC"
)

// FADT offsets (relative to the start of the table) of the pointers to the
// differentiated system description table. Each pointer is only valid if the
// table is long enough to contain it.
const (
	FADTOffDSDT     = 40
	FADTMinLenDSDT  = 44
	FADTOffXDSDT    = 140
	FADTMinLenXDSDT = 148
)

// MADT layout. The local controller address and flags follow the header and
// are followed by a series of variable sized interrupt controller records.
const (
	MADTOffLocalAPICAddr = HeaderLength
	MADTOffFlags         = HeaderLength + 4
	MADTOffEntries       = HeaderLength + 8
)

// MADTEntryType describes the type of a MADT record.
type MADTEntryType uint8

// The list of MADT record types defined by ACPI 6.x.
const (
	MADTEntryTypeLocalAPIC MADTEntryType = iota
	MADTEntryTypeIOAPIC
	MADTEntryTypeIntSrcOverride
	MADTEntryTypeNMISource
	MADTEntryTypeLocalAPICNMI
	MADTEntryTypeLocalAPICAddrOverride
	MADTEntryTypeIOSAPIC
	MADTEntryTypeLocalSAPIC
	MADTEntryTypePlatformIntSources
	MADTEntryTypeLocalX2APIC
	MADTEntryTypeLocalX2APICNMI
	MADTEntryTypeGIC
	MADTEntryTypeGICD
)

// String returns the name of the record type.
func (t MADTEntryType) String() string {
	switch t {
	case MADTEntryTypeLocalAPIC:
		return "Processor Local APIC"
	case MADTEntryTypeIOAPIC:
		return "I/O APIC"
	case MADTEntryTypeIntSrcOverride:
		return "Interrupt Source Override"
	case MADTEntryTypeNMISource:
		return "NMI Source"
	case MADTEntryTypeLocalAPICNMI:
		return "Local APIC NMI"
	case MADTEntryTypeLocalAPICAddrOverride:
		return "Local APIC Address Override"
	case MADTEntryTypeIOSAPIC:
		return "I/O SAPIC"
	case MADTEntryTypeLocalSAPIC:
		return "Local SAPIC"
	case MADTEntryTypePlatformIntSources:
		return "Platform Interrupt Sources"
	case MADTEntryTypeLocalX2APIC:
		return "Processor Local x2APIC"
	case MADTEntryTypeLocalX2APICNMI:
		return "Local x2APIC NMI"
	case MADTEntryTypeGIC:
		return "GIC"
	case MADTEntryTypeGICD:
		return "GICD"
	default:
		return "unknown"
	}
}

// Known reports whether the record type is one ACPI defines.
func (t MADTEntryType) Known() bool {
	return t <= MADTEntryTypeGICD
}

// MADTEntry describes a MADT record. Payload holds the complete record
// including the two-byte type/length prefix, so field offsets match the ones
// used by ACPI.
type MADTEntry struct {
	Type    MADTEntryType
	Length  uint8
	Payload []byte
}

// Field offsets within the MADT records that the topology builder consumes.
const (
	LocalAPICOffProcessorID = 2
	LocalAPICOffAPICID      = 3
	LocalAPICOffFlags       = 4
	LocalAPICMinLen         = 8

	IOAPICOffAPICID  = 2
	IOAPICOffAddress = 4
	IOAPICOffGSIBase = 8
	IOAPICMinLen     = 12

	IntSrcOverrideOffBus    = 2
	IntSrcOverrideOffSource = 3
	IntSrcOverrideOffGSI    = 4
	IntSrcOverrideOffFlags  = 8
	IntSrcOverrideMinLen    = 10
)

// LocalAPICFlagEnabled is set in a local APIC record when the processor is
// usable.
const LocalAPICFlagEnabled = 1 << 0
