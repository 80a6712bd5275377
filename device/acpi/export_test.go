package acpi

import (
	"acpitopo/device/acpi/acpitest"
	"bytes"
	"io"
	"testing"
)

func TestReadTables(t *testing.T) {
	fw := newFirmware(0, defaultMADT())
	e, _ := newEngine(fw.Image)

	// Reads trigger discovery.
	first := make([]byte, 16)
	if n := e.ReadTables(first, 0); n != len(first) {
		t.Fatalf("expected to read %d bytes; got %d", len(first), n)
	}

	cache := e.cached()
	if cache == nil {
		t.Fatal("expected ReadTables to build the table cache")
	}

	var stream []byte
	for _, tbl := range cache.Tables() {
		stream = append(stream, tbl.Bytes()...)
	}

	if int64(len(stream)) != cache.TotalSize() {
		t.Fatalf("expected total size %d; got %d", len(stream), cache.TotalSize())
	}

	if !bytes.Equal(first, stream[:16]) {
		t.Fatal("expected the first bytes of the first table")
	}

	t.Run("spanning tables", func(t *testing.T) {
		rsdtLen := len(cache.Tables()[0].Bytes())
		buf := make([]byte, 64)

		n := e.ReadTables(buf, int64(rsdtLen-10))
		if n != len(buf) || !bytes.Equal(buf, stream[rsdtLen-10:rsdtLen+54]) {
			t.Fatal("expected a contiguous read across the table boundary")
		}
	})

	t.Run("short read at end of stream", func(t *testing.T) {
		buf := make([]byte, 64)
		n := e.ReadTables(buf, int64(len(stream)-5))
		if n != 5 || !bytes.Equal(buf[:5], stream[len(stream)-5:]) {
			t.Fatalf("expected a 5 byte read; got %d", n)
		}
	})

	t.Run("past end of stream", func(t *testing.T) {
		if n := e.ReadTables(make([]byte, 8), int64(len(stream)+1)); n != 0 {
			t.Fatalf("expected 0 bytes; got %d", n)
		}
	})

	t.Run("io.ReaderAt", func(t *testing.T) {
		var r io.ReaderAt = e

		got, err := io.ReadAll(io.NewSectionReader(r, 0, cache.TotalSize()+100))
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(got, stream) {
			t.Fatal("expected section reader to return the complete stream")
		}
	})

	t.Run("no ACPI", func(t *testing.T) {
		e, _ := newEngine(acpitest.NewFirmware().Image)
		if n := e.ReadTables(make([]byte, 8), 0); n != 0 {
			t.Fatalf("expected 0 bytes; got %d", n)
		}
	})
}
