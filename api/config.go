// Package api provides the HTTP surface of the chat relay: streaming and
// synchronous chat, news, health, usage stats and the MCP endpoint.
package api

// DefaultServiceName is reported by the health endpoint.
const DefaultServiceName = "chatrelay"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":5000")
	ListenAddr string

	// ServiceName is reported by GET /api/health.
	ServiceName string

	// DisableMCP leaves /mcp unmounted.
	DisableMCP bool
}
