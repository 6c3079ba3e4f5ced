package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Flusher is implemented by destinations that buffer writes.
type Flusher interface {
	Flush() error
}

// Writer frames values as "data: <json>\n\n" records on dst.
//
// After the first failed write every later call returns that error without
// touching dst, so a caller can keep going until it notices Err.
type Writer struct {
	mu   sync.Mutex
	dst  io.Writer
	err  error
	done bool
}

// NewWriter returns a Writer on dst. If dst implements Flusher it is flushed
// after every record.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WriteEvent marshals v and writes it as one record.
func (w *Writer) WriteEvent(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return io.ErrClosedPipe
	}
	return w.write(payload)
}

// Done writes the terminal sentinel. Only the first call writes anything.
func (w *Writer) Done() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return w.err
	}
	w.done = true
	return w.write([]byte(DoneSentinel))
}

// Ping writes a comment record. Readers skip it, but a write to a peer
// that has gone away fails and sticks like any other write error.
func (w *Writer) Ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.done {
		return io.ErrClosedPipe
	}
	return w.send([]byte(pingFrame))
}

// Err reports the first write failure, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) write(payload []byte) error {
	frame := make([]byte, 0, len(dataPrefix)+len(payload)+3)
	frame = append(frame, dataPrefix...)
	frame = append(frame, ' ')
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	return w.send(frame)
}

func (w *Writer) send(frame []byte) error {
	if w.err != nil {
		return w.err
	}

	if _, err := w.dst.Write(frame); err != nil {
		w.err = err
		return err
	}

	if f, ok := w.dst.(Flusher); ok {
		if err := f.Flush(); err != nil {
			w.err = err
			return err
		}
	}

	return nil
}
