package api

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

// SyncResponse is the body of a successful POST /api/chat/sync.
type SyncResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

// NewsResponse is the body of a successful GET /api/news.
type NewsResponse struct {
	Success bool        `json:"success"`
	News    []news.Item `json:"news"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

const (
	// ClientIDHeader lets browsers keep a stable user id across requests.
	ClientIDHeader = "X-Client-ID"

	webUserPrefix = "web_user_"
)

var clientNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("chatrelay"))

// handleChat relays a chat turn as an event stream.
func (s *Server) handleChat(c *fiber.Ctx) error {
	s.recordAPICall(c)

	req, err := s.parseChatRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// Each pw.Write blocks until fasthttp's chunked writer has consumed and
	// flushed it, so events reach the client as they are produced. When the
	// client goes away fasthttp closes pr and the next write fails. The relay
	// pings the writer while the upstream is quiet, so that write comes soon
	// even when no event is due.
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()

		state, err := s.chat.Stream(s.baseCtx, req, sse.NewWriter(pw))
		if err != nil {
			s.logger.Warn("chat stream ended with error",
				"state", state.String(),
				"user_id", req.UserID,
				"error", err,
			)
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// handleChatSync relays a chat turn and answers with the concatenated reply.
func (s *Server) handleChatSync(c *fiber.Ctx) error {
	s.recordAPICall(c)

	req, err := s.parseChatRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	answer, err := s.chat.Aggregate(c.UserContext(), req)
	if err != nil {
		return s.aggregateError(c, err, "request failed")
	}

	return c.JSON(SyncResponse{Success: true, Response: answer})
}

// handleNews returns the current news list.
func (s *Server) handleNews(c *fiber.Ctx) error {
	items, err := s.news.Latest(c.UserContext())
	if err != nil {
		return s.aggregateError(c, err, "failed to fetch news")
	}

	return c.JSON(NewsResponse{Success: true, News: items})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "healthy", Service: s.config.ServiceName})
}

// handleStats returns the usage counters.
func (s *Server) handleStats(c *fiber.Ctx) error {
	snap, err := s.counter.Read(c.UserContext())
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read stats"})
	}

	return c.JSON(snap)
}

// handleVisit records one page visit.
func (s *Server) handleVisit(c *fiber.Ctx) error {
	if err := s.counter.RecordVisit(c.UserContext()); err != nil {
		s.logger.Error("failed to record visit", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to record visit"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "not found"})
}

// recordAPICall counts a chat call. Counting never fails the request.
func (s *Server) recordAPICall(c *fiber.Ctx) {
	if err := s.counter.RecordAPICall(c.UserContext()); err != nil {
		s.logger.Error("failed to record api call", "error", err)
	}
}

// parseChatRequest decodes and validates a chat body, filling in the user id.
func (s *Server) parseChatRequest(c *fiber.Ctx) (relay.ChatRequest, error) {
	var req relay.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return req, errors.New("invalid request body")
	}
	if err := req.Validate(); err != nil {
		return req, err
	}

	req.UserID = resolveUserID(req.UserID, c.Get(ClientIDHeader), c.IP())
	return req, nil
}

// aggregateError maps a synchronous relay failure to its HTTP response.
func (s *Server) aggregateError(c *fiber.Ctx, err error, upstreamMsg string) error {
	var (
		verr *relay.ValidationError
		uerr *relay.UpstreamStatusError
	)

	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: verr.Error()})

	case errors.As(err, &uerr):
		s.logger.Warn("upstream returned error", "path", c.Path(), "status", uerr.Status)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: upstreamMsg, Status: uerr.Status})

	case errors.Is(err, relay.ErrTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{Error: relay.ErrTimeout.Error()})

	default:
		s.logger.Error("upstream request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}

// resolveUserID picks the body user id, then the client id header, then a
// stable id derived from the caller address.
func resolveUserID(bodyID, headerID, ip string) string {
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	if id := strings.TrimSpace(headerID); id != "" {
		return id
	}

	id := uuid.NewSHA1(clientNamespace, []byte(ip))
	return webUserPrefix + strings.ReplaceAll(id.String(), "-", "")[:8]
}
