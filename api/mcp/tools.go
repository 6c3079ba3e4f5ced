package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/stats"
)

var (
	latestNewsToolName    = "latest_news"
	latestNewsDescription = "Fetch the latest news items from the assistant bot. Returns a list of {title, content, url}. Results are cached for a few minutes."

	usageStatsToolName    = "usage_stats"
	usageStatsDescription = "Report chatrelay usage: total and today's visits and API calls, plus the last seven days."

	askToolName    = "ask"
	askDescription = "Ask the assistant bot a single question and return its full answer. Pass conversation_id to continue an earlier conversation."

	mcpUserID = "mcp_client"
)

// LatestNewsInput takes no arguments.
type LatestNewsInput struct{}

// LatestNewsOutput is the structured output of latest_news.
type LatestNewsOutput struct {
	News []news.Item `json:"news"`
}

// UsageStatsInput takes no arguments.
type UsageStatsInput struct{}

// AskInput represents the input arguments for the MCP ask tool.
type AskInput struct {
	Message        string `json:"message" jsonschema:"the question to ask"`
	UserID         string `json:"user_id,omitempty" jsonschema:"optional user id, defaults to mcp_client"`
	ConversationID string `json:"conversation_id,omitempty" jsonschema:"optional conversation to continue"`
}

// AskOutput is the structured output of ask.
type AskOutput struct {
	Answer string `json:"answer"`
}

func (s *Server) handleLatestNews(ctx context.Context, _ *mcp.CallToolRequest, _ LatestNewsInput) (*mcp.CallToolResult, LatestNewsOutput, error) {
	items, err := s.config.News.Latest(ctx)
	if err != nil {
		s.config.Logger.Warn("mcp news fetch failed", "error", err)
		return errorResult(fmt.Sprintf("Fetching news failed: %v", err)), LatestNewsOutput{News: []news.Item{}}, nil
	}

	output := LatestNewsOutput{News: items}
	return textResult(output), output, nil
}

func (s *Server) handleUsageStats(ctx context.Context, _ *mcp.CallToolRequest, _ UsageStatsInput) (*mcp.CallToolResult, stats.Snapshot, error) {
	snap, err := s.config.Stats.Read(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("Reading stats failed: %v", err)), stats.Snapshot{Daily: []stats.DailyCounter{}}, nil
	}

	return textResult(snap), *snap, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Message) == "" {
		return errorResult("message is required"), AskOutput{}, nil
	}

	if err := s.config.Stats.RecordAPICall(ctx); err != nil {
		s.config.Logger.Error("failed to record api call", "error", err)
	}

	userID := input.UserID
	if userID == "" {
		userID = mcpUserID
	}

	answer, err := s.config.Asker.Aggregate(ctx, relay.ChatRequest{
		Message:        input.Message,
		UserID:         userID,
		ConversationID: input.ConversationID,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("Ask failed: %v", err)), AskOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: answer},
		},
	}, AskOutput{Answer: answer}, nil
}

// textResult renders v as the JSON text content of a result.
func textResult(v any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}
