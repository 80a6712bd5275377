package acpi

import "io"

// ReadAt implements io.ReaderAt over the concatenated images of the cached
// tables in discovery order. The table cache is built on demand. Short reads
// at the end of the stream return io.EOF.
func (e *Engine) ReadAt(p []byte, off int64) (int, error) {
	n := e.ReadTables(p, off)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadTables copies up to len(p) bytes starting at offset off of the
// concatenated table images into p and returns the number of bytes copied.
// Reading past the end of the stream returns 0. If the tables have not been
// discovered yet, ReadTables triggers discovery; if no RSDP can be found it
// returns 0.
func (e *Engine) ReadTables(p []byte, off int64) int {
	cache, err := e.Tables()
	if err != nil {
		return 0
	}

	return cache.ReadAt(p, off)
}

// ReadTables reads from the tables discovered by DefaultEngine.
func ReadTables(p []byte, off int64) int {
	return DefaultEngine.ReadTables(p, off)
}
