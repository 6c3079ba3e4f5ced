package api

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/chatrelay/api/mcp"
	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/stats"
)

// Chatter runs chat requests against the upstream.
type Chatter interface {
	Stream(ctx context.Context, req relay.ChatRequest, sink relay.Sink) (relay.State, error)
	Aggregate(ctx context.Context, req relay.ChatRequest, opts ...relay.AggregateOption) (string, error)
}

// Stats records and reports usage counters.
type Stats interface {
	RecordVisit(ctx context.Context) error
	RecordAPICall(ctx context.Context) error
	Read(ctx context.Context) (*stats.Snapshot, error)
}

// NewsSource returns the current news list.
type NewsSource interface {
	Latest(ctx context.Context) ([]news.Item, error)
}

// Server is the chat relay HTTP server.
type Server struct {
	config  Config
	chat    Chatter
	counter Stats
	news    NewsSource
	logger  *slog.Logger
	app     *fiber.App

	// streams outlive their fiber handler, so they run on this context and
	// are cancelled by Shutdown.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer creates a new API server. The chat relay, counter and news
// source are injected so the CLI can share them with other components.
func NewServer(config Config, chat Chatter, counter Stats, newsSource NewsSource, logger *slog.Logger) (*Server, error) {
	if chat == nil {
		return nil, errors.New("chat relay is required")
	}
	if counter == nil {
		return nil, errors.New("stats counter is required")
	}
	if newsSource == nil {
		return nil, errors.New("news source is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:  config,
		chat:    chat,
		counter: counter,
		news:    newsSource,
		logger:  logger,
		app:     app,
		baseCtx: baseCtx,
		cancel:  cancel,
	}

	app.Post("/api/chat", s.handleChat)
	app.Post("/api/chat/sync", s.handleChatSync)
	app.Get("/api/news", s.handleNews)
	app.Get("/api/health", s.handleHealth)
	app.Get("/api/stats", s.handleStats)
	app.Post("/api/visit", s.handleVisit)
	app.All("/api/*", s.handleNotFound)

	if !config.DisableMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			News:   newsSource,
			Stats:  counter,
			Asker:  chat,
			Logger: logger,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener starts the API server using the provided listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting API server", "listen", listener.Addr().String())
	return s.app.Listener(listener)
}

// Shutdown cancels in-flight streams and gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
