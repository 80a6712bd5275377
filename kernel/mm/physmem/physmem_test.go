package physmem

import "testing"

func TestImageMap(t *testing.T) {
	img := NewImage()

	low := make([]byte, 0x20000)
	low[0x10] = 0xaa
	if err := img.AddRegion(0xe0000, low); err != nil {
		t.Fatal(err)
	}

	if err := img.AddRegion(0x7fe0000, make([]byte, 0x1000)); err != nil {
		t.Fatal(err)
	}

	t.Run("overlap", func(t *testing.T) {
		if err := img.AddRegion(0xfff00, make([]byte, 0x200)); err != ErrOverlap {
			t.Fatalf("expected ErrOverlap; got %v", err)
		}
	})

	t.Run("empty region", func(t *testing.T) {
		if err := img.AddRegion(0x1000, nil); err != ErrInvalidRange {
			t.Fatalf("expected ErrInvalidRange; got %v", err)
		}
	})

	specs := []struct {
		addr, size uint64
		expErr     error
	}{
		{0xe0000, 0x20000, nil},
		{0xe0010, 1, nil},
		{0xffff0, 0x10, nil},
		{0xffff0, 0x11, ErrNotMapped},
		{0x7fe0800, 0x100, nil},
		{0x1000, 8, ErrNotMapped},
		{0xe0000, 0, ErrInvalidRange},
		{^uint64(0) - 2, 8, ErrInvalidRange},
	}

	for specIndex, spec := range specs {
		w, err := img.Map(spec.addr, spec.size)
		if spec.expErr != nil {
			if err == nil || err != spec.expErr {
				t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}

		if w.Addr != spec.addr || uint64(len(w.Bytes)) != spec.size {
			t.Errorf("[spec %d] expected window [0x%x, +0x%x); got [0x%x, +0x%x)", specIndex, spec.addr, spec.size, w.Addr, len(w.Bytes))
		}
		img.Unmap(w)
	}

	t.Run("windows alias region data", func(t *testing.T) {
		w, err := img.Map(0xe0010, 1)
		if err != nil {
			t.Fatal(err)
		}

		if w.Bytes[0] != 0xaa {
			t.Fatalf("expected mapped byte to be 0xaa; got 0x%x", w.Bytes[0])
		}

		w.Bytes[0] = 0x55
		if low[0x10] != 0x55 {
			t.Fatal("expected writes through a window to update the region")
		}
	})
}
