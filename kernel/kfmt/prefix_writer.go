package kfmt

import (
	"bytes"
	"fmt"
	"io"
)

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. The HAL uses one PrefixWriter for all
// drivers and switches its prefix before each driver is initialized.
type PrefixWriter struct {
	// A writer where all writes get sent to.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set while the last line written to Sink has not been
	// terminated.
	midLine bool
}

// SetPrefix formats a new line prefix. If the previous prefix owner left an
// unterminated line, it is terminated first so that output from the new owner
// never continues a line tagged with the old prefix.
func (w *PrefixWriter) SetPrefix(format string, args ...interface{}) {
	if w.midLine {
		w.Sink.Write([]byte{'\n'})
		w.midLine = false
	}

	w.Prefix = []byte(fmt.Sprintf(format, args...))
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// back the number of bytes written. The injected prefix is not included in
// the number of written bytes returned by this method.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		line := p
		if nl := bytes.IndexByte(p, '\n'); nl != -1 {
			line = p[:nl+1]
		}

		n, err := w.Sink.Write(line)
		written += n
		if err != nil {
			return written, err
		}

		if line[len(line)-1] == '\n' {
			w.midLine = false
		}
		p = p[len(line):]
	}

	return written, nil
}
