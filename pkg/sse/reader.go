package sse

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// MaxLineSize caps a single upstream line. Longer lines are discarded whole
// and reading carries on with the next line.
const MaxLineSize = 4 << 20

// Reader turns an upstream byte stream into Records.
//
// A Reader is single use and not safe for concurrent calls to Next. The
// carried event type lives on the Reader, so each upstream call gets its own.
type Reader struct {
	br    *bufio.Reader
	event string
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(src, 64*1024)}
}

// Next blocks until the next record is available. It returns nil, nil once
// src is exhausted. Lines that carry no usable payload (blank separators,
// comments, empty data, the [DONE] sentinel, malformed JSON, lines over
// MaxLineSize) are skipped.
func (r *Reader) Next() (*Record, error) {
	for {
		line, skip, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, eventPrefix):
			r.event = strings.TrimSpace(line[len(eventPrefix):])

		case strings.HasPrefix(line, dataPrefix):
			data := strings.TrimSpace(line[len(dataPrefix):])
			if data == "" || data == DoneSentinel {
				continue
			}
			if !json.Valid([]byte(data)) {
				continue
			}
			return &Record{Event: r.event, Data: []byte(data)}, nil
		}
	}
}

// readLine returns the next line without its terminator. skip is set when
// the line outgrew MaxLineSize; its bytes have been consumed and dropped.
// An unterminated final line is returned before io.EOF.
func (r *Reader) readLine() (line string, skip bool, err error) {
	var buf []byte
	read := false

	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if !skip {
				if len(buf)+len(chunk) > MaxLineSize+2 {
					skip = true
					buf = nil
				} else {
					buf = append(buf, chunk...)
				}
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue

		case errors.Is(err, io.EOF):
			if !read {
				return "", false, io.EOF
			}

		case err != nil:
			return "", false, err
		}

		if skip {
			return "", true, nil
		}
		return strings.TrimRight(string(buf), "\r\n"), false, nil
	}
}

// Event returns the event type currently carried by the reader.
func (r *Reader) Event() string {
	return r.event
}
