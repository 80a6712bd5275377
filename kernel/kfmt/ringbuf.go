package kfmt

import (
	"fmt"
	"io"
)

// ringBufferSize defines size of the ring buffer that buffers early Printf
// output. The ring buffer size must always be a power of 2.
const ringBufferSize = 4096

// ringBuffer captures diagnostics emitted before an output sink is attached.
// Once full, new writes overwrite the oldest data and the number of lost
// bytes is tracked so the replay can report it.
type ringBuffer struct {
	buffer [ringBufferSize]byte

	// start indexes the oldest buffered byte and count is the number of
	// buffered bytes.
	start, count int

	// dropped counts the bytes overwritten since the last replay.
	dropped int
}

// Write appends p to the buffer, overwriting the oldest data if needed.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.start+rb.count)&(ringBufferSize-1)] = b
		if rb.count < ringBufferSize {
			rb.count++
			continue
		}

		rb.start = (rb.start + 1) & (ringBufferSize - 1)
		rb.dropped++
	}

	return len(p), nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int { return rb.count }

// Reset discards the buffered data.
func (rb *ringBuffer) Reset() {
	rb.start, rb.count, rb.dropped = 0, 0, 0
}

// WriteTo replays the buffered output to w and empties the buffer. If data
// was overwritten, the partial line left at the head of the buffer is
// discarded and the replay starts with a notice stating how many bytes were
// lost.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	defer rb.Reset()

	if rb.dropped != 0 {
		for rb.count != 0 {
			b := rb.buffer[rb.start]
			rb.start = (rb.start + 1) & (ringBufferSize - 1)
			rb.count--
			rb.dropped++
			if b == '\n' {
				break
			}
		}
	}

	var written int64
	if rb.dropped != 0 {
		n, err := fmt.Fprintf(w, "[kfmt] %d bytes of early output lost\n", rb.dropped)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	// The buffered data occupies at most two contiguous segments.
	for rb.count != 0 {
		end := rb.start + rb.count
		if end > ringBufferSize {
			end = ringBufferSize
		}

		n, err := w.Write(rb.buffer[rb.start:end])
		written += int64(n)
		if err != nil {
			return written, err
		}

		rb.count -= end - rb.start
		rb.start = end & (ringBufferSize - 1)
	}

	return written, nil
}
