package table

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"
)

func makeTable(sig string, payloadLen int) []byte {
	b := make([]byte, HeaderLength+payloadLen)
	copy(b, sig)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	b[8] = 2
	copy(b[10:], "GOPHER")
	copy(b[16:], "ACPITOPO")
	for i := HeaderLength; i < len(b); i++ {
		b[i] = byte(i)
	}
	b[9] = -Checksum(b)
	return b
}

func TestReaders(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

	if exp, got := uint16(0x0201), Get16(b); got != exp {
		t.Errorf("expected Get16 to return 0x%x; got 0x%x", exp, got)
	}

	if exp, got := uint32(0x04030201), Get32(b); got != exp {
		t.Errorf("expected Get32 to return 0x%x; got 0x%x", exp, got)
	}

	if exp, got := uint64(0x0807060504030201), Get64(b); got != exp {
		t.Errorf("expected Get64 to return 0x%x; got 0x%x", exp, got)
	}
}

func TestChecksum(t *testing.T) {
	b := makeTable("APIC", 64)
	if !Valid(b) {
		t.Fatal("expected generated table to have a valid checksum")
	}

	// Corrupting any single byte must invalidate the table.
	for i := range b {
		corrupted := append([]byte(nil), b...)
		corrupted[i]++
		if Valid(corrupted) {
			t.Fatalf("expected corruption of byte %d to invalidate the checksum", i)
		}
	}
}

func TestParseRSDP(t *testing.T) {
	buildRSDP := func(rev uint8) []byte {
		b := make([]byte, ExtRSDPLength)
		copy(b, RSDPSignature)
		copy(b[9:], "GOPHER")
		b[15] = rev
		binary.LittleEndian.PutUint32(b[16:], 0xbadf00)
		b[8] = -Checksum(b[:RSDPLength])
		binary.LittleEndian.PutUint32(b[20:], ExtRSDPLength)
		binary.LittleEndian.PutUint64(b[24:], 0xc0ffee)
		b[32] = -Checksum(b[:ExtRSDPLength])
		return b
	}

	t.Run("ACPI1", func(t *testing.T) {
		rsdp, ok := ParseRSDP(buildRSDP(Rev1)[:RSDPLength])
		if !ok {
			t.Fatal("expected ParseRSDP to succeed")
		}

		if rsdp.RSDTAddr != 0xbadf00 || rsdp.XSDTAddr != 0 {
			t.Fatalf("unexpected addresses: rsdt 0x%x xsdt 0x%x", rsdp.RSDTAddr, rsdp.XSDTAddr)
		}

		if !rsdp.ValidV1() {
			t.Fatal("expected v1 checksum to be valid")
		}

		if rsdp.ValidExt() {
			t.Fatal("expected ACPI1 descriptor to report no valid extended checksum")
		}

		if exp, got := "GOPHER", string(rsdp.OEMID[:]); got != exp {
			t.Fatalf("expected OEMID %q; got %q", exp, got)
		}
	})

	t.Run("ACPI2+", func(t *testing.T) {
		rsdp, ok := ParseRSDP(buildRSDP(Rev2Plus))
		if !ok {
			t.Fatal("expected ParseRSDP to succeed")
		}

		if rsdp.XSDTAddr != 0xc0ffee || rsdp.Length != ExtRSDPLength {
			t.Fatalf("unexpected extended fields: xsdt 0x%x len %d", rsdp.XSDTAddr, rsdp.Length)
		}

		if !rsdp.ValidV1() || !rsdp.ValidExt() {
			t.Fatal("expected both checksums to be valid")
		}
	})

	t.Run("ACPI2+ extended checksum mismatch", func(t *testing.T) {
		b := buildRSDP(Rev2Plus)
		b[33]++
		rsdp, _ := ParseRSDP(b)
		if !rsdp.ValidV1() {
			t.Fatal("expected v1 checksum to remain valid")
		}
		if rsdp.ValidExt() {
			t.Fatal("expected extended checksum to be invalid")
		}
	})

	t.Run("bad signature or length", func(t *testing.T) {
		if _, ok := ParseRSDP([]byte("RSD PTR")); ok {
			t.Fatal("expected short input to be rejected")
		}

		b := buildRSDP(Rev1)
		b[0] = 'X'
		if _, ok := ParseRSDP(b); ok {
			t.Fatal("expected bad signature to be rejected")
		}
	})
}

func TestNewTable(t *testing.T) {
	b := makeTable("FACP", 16)

	tbl, ok := NewTable(0x7fe0000, b)
	if !ok {
		t.Fatal("expected NewTable to succeed")
	}

	if tbl.Sig() != "FACP" || tbl.Length != uint32(len(b)) || tbl.Addr != 0x7fe0000 {
		t.Fatalf("unexpected table: %s len %d addr 0x%x", tbl.Sig(), tbl.Length, tbl.Addr)
	}

	if exp, got := "ACPITOPO", string(tbl.OEMTableID[:]); got != exp {
		t.Fatalf("expected OEM table id %q; got %q", exp, got)
	}

	if !bytes.Equal(tbl.Bytes(), b) || len(tbl.Data()) != 16 {
		t.Fatal("unexpected table contents")
	}

	// The table keeps its own copy of the image
	b[HeaderLength]++
	if bytes.Equal(tbl.Bytes(), b) {
		t.Fatal("expected table to be isolated from changes to the source buffer")
	}

	if _, ok := NewTable(0, b[:HeaderLength-1]); ok {
		t.Fatal("expected NewTable to reject truncated headers")
	}

	if _, ok := NewTable(0, b[:HeaderLength+8]); ok {
		t.Fatal("expected NewTable to reject images shorter than the declared length")
	}
}

func TestVisitMADTEntries(t *testing.T) {
	specs := []struct {
		descr       string
		stream      []byte
		expTypes    []MADTEntryType
		expConsumed int
	}{
		{
			"well formed",
			[]byte{0, 8, 0, 0, 1, 0, 0, 0, 1, 12, 1, 0, 0, 0, 0xc0, 0xfe, 0, 0, 0, 0, 2, 10, 0, 0, 2, 0, 0, 0, 0, 0},
			[]MADTEntryType{MADTEntryTypeLocalAPIC, MADTEntryTypeIOAPIC, MADTEntryTypeIntSrcOverride},
			30,
		},
		{
			"unknown record types are visited",
			[]byte{0x7f, 4, 0xaa, 0xbb, 0, 8, 0, 0, 1, 0, 0, 0},
			[]MADTEntryType{0x7f, MADTEntryTypeLocalAPIC},
			12,
		},
		{
			"single trailing byte",
			[]byte{0, 8, 0, 0, 1, 0, 0, 0, 9},
			[]MADTEntryType{MADTEntryTypeLocalAPIC},
			8,
		},
		{
			"record length below 2",
			[]byte{0, 8, 0, 0, 1, 0, 0, 0, 4, 1, 0, 8, 0, 0, 1, 0, 0, 0},
			[]MADTEntryType{MADTEntryTypeLocalAPIC},
			8,
		},
		{
			"record past the end",
			[]byte{0, 8, 0, 0, 1, 0, 0, 0, 1, 12, 1, 0},
			[]MADTEntryType{MADTEntryTypeLocalAPIC},
			8,
		},
		{
			"empty",
			nil,
			nil,
			0,
		},
	}

	for _, spec := range specs {
		t.Run(spec.descr, func(t *testing.T) {
			var got []MADTEntryType
			consumed := VisitMADTEntries(spec.stream, func(e MADTEntry) bool {
				if int(e.Length) != len(e.Payload) {
					t.Errorf("expected payload length %d; got %d", e.Length, len(e.Payload))
				}
				got = append(got, e.Type)
				return true
			})

			if fmt.Sprint(got) != fmt.Sprint(spec.expTypes) {
				t.Errorf("expected visited types %v; got %v", spec.expTypes, got)
			}

			if consumed != spec.expConsumed {
				t.Errorf("expected %d consumed bytes; got %d", spec.expConsumed, consumed)
			}
		})
	}

	t.Run("visitor aborts walk", func(t *testing.T) {
		var visited int
		VisitMADTEntries([]byte{0, 2, 0, 2, 0, 2}, func(_ MADTEntry) bool {
			visited++
			return visited < 2
		})
		if visited != 2 {
			t.Fatalf("expected walk to stop after 2 records; visited %d", visited)
		}
	})
}

func TestMADTEntryTypeNames(t *testing.T) {
	for typ := MADTEntryTypeLocalAPIC; typ <= MADTEntryTypeGICD; typ++ {
		if !typ.Known() || typ.String() == "unknown" {
			t.Errorf("expected record type %d to be known", typ)
		}
	}

	if typ := MADTEntryType(0x42); typ.Known() || typ.String() != "unknown" {
		t.Errorf("expected record type 0x42 to be unknown")
	}
}
