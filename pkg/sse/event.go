// Package sse reads the upstream line-oriented event stream and frames the
// simplified client event stream.
//
// The upstream protocol is read line by line rather than event by event: an
// "event:" line sets the type carried by every following "data:" line until
// the next "event:" line. Each data line is its own record.
package sse

const (
	// DoneSentinel is the data payload marking the end of a stream.
	DoneSentinel = "[DONE]"

	eventPrefix = "event:"
	pingFrame   = ": ping\n\n"
	dataPrefix  = "data:"
)

// Record is one decoded data line paired with the event type in effect
// when it was read.
type Record struct {
	// Event is the most recent "event:" value, or empty if none has been seen.
	Event string

	// Data is the trimmed JSON payload of the line.
	Data []byte
}
