package table

// CacheCapacity is the maximum number of tables that a Cache can hold.
const CacheCapacity = 64

// AddResult describes the outcome of a call to Cache.Add.
type AddResult uint8

// The list of possible Cache.Add outcomes.
const (
	Added AddResult = iota
	Duplicate
	Full
)

// String implements fmt.Stringer.
func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case Duplicate:
		return "duplicate signature"
	case Full:
		return "cache full"
	}
	return "unknown"
}

// Cache is an insertion-ordered, fixed-capacity collection of tables that is
// unique by signature. The first table added for a signature wins; later
// tables with the same signature are rejected. Cache is not safe for
// concurrent use.
type Cache struct {
	tables [CacheCapacity]*Table
	count  int
}

// Add appends t to the cache unless the cache is full or already contains a
// table with the same signature.
func (c *Cache) Add(t *Table) AddResult {
	if c.Contains(t.Sig()) {
		return Duplicate
	}

	if c.Full() {
		return Full
	}

	c.tables[c.count] = t
	c.count++
	return Added
}

// Contains reports whether a table with the given signature is cached.
func (c *Cache) Contains(sig string) bool {
	return c.Find(sig) != nil
}

// Find returns the table with the given signature or nil if no such table
// has been cached.
func (c *Cache) Find(sig string) *Table {
	for i := 0; i < c.count; i++ {
		if c.tables[i].Sig() == sig {
			return c.tables[i]
		}
	}

	return nil
}

// Len returns the number of cached tables.
func (c *Cache) Len() int { return c.count }

// Full reports whether the cache has reached its capacity.
func (c *Cache) Full() bool { return c.count >= CacheCapacity }

// Tables returns the cached tables in insertion order.
func (c *Cache) Tables() []*Table {
	return c.tables[:c.count:c.count]
}

// TotalSize returns the combined length of all cached table images.
func (c *Cache) TotalSize() int64 {
	var total int64
	for _, t := range c.Tables() {
		total += int64(len(t.raw))
	}
	return total
}

// ReadAt copies bytes from the stream formed by concatenating the images of
// all cached tables in insertion order, starting at offset off. It returns
// the number of bytes copied, which is less than len(p) when the end of the
// stream is reached and 0 when off lies past the end of the stream.
func (c *Cache) ReadAt(p []byte, off int64) int {
	if off < 0 {
		return 0
	}

	var n int
	for _, t := range c.Tables() {
		if n == len(p) {
			break
		}

		l := int64(len(t.raw))
		if off >= l {
			off -= l
			continue
		}

		n += copy(p[n:], t.raw[off:])
		off = 0
	}

	return n
}
