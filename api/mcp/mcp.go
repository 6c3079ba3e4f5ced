// Package mcp provides an MCP (Model Context Protocol) server exposing the
// chat relay's news, usage stats and one-shot questions as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/stats"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

// NewsSource returns the current news list.
type NewsSource interface {
	Latest(ctx context.Context) ([]news.Item, error)
}

// Stats reads usage counters and counts tool-driven chat calls.
type Stats interface {
	RecordAPICall(ctx context.Context) error
	Read(ctx context.Context) (*stats.Snapshot, error)
}

// Asker answers a single chat turn synchronously.
type Asker interface {
	Aggregate(ctx context.Context, req relay.ChatRequest, opts ...relay.AggregateOption) (string, error)
}

type Config struct {
	News  NewsSource
	Stats Stats
	Asker Asker

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the relay tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "chatrelay",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.News == nil {
			return nil, errors.New("news source is required")
		}
		if c.Stats == nil {
			return nil, errors.New("stats counter is required")
		}
		if c.Asker == nil {
			return nil, errors.New("chat relay is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        latestNewsToolName,
			Description: latestNewsDescription,
		}, s.handleLatestNews)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        usageStatsToolName,
			Description: usageStatsDescription,
		}, s.handleUsageStats)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        askToolName,
			Description: askDescription,
		}, s.handleAsk)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// errorResult reports a tool failure to the calling model.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
