package relay

// State is the position of one relay call in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequestSent
	StateStreaming
	StateOK
	StateUpstreamError
	StateTimeout
	StateTransportError
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateRequestSent:    "request_sent",
	StateStreaming:      "streaming",
	StateOK:             "ok",
	StateUpstreamError:  "upstream_error",
	StateTimeout:        "timeout",
	StateTransportError: "transport_error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s ends a call.
func (s State) Terminal() bool {
	return s >= StateOK
}
