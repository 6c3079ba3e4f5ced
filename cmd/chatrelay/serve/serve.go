// Package servecmder provides the serve command that runs the chat relay.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/coze"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/news"
	"github.com/papercomputeco/chatrelay/pkg/relay"
	"github.com/papercomputeco/chatrelay/pkg/stats"
	"github.com/papercomputeco/chatrelay/pkg/worker"
)

type serveCommander struct {
	flags config.FlagSet

	listen          string
	baseURL         string
	token           string
	botID           string
	timeout         string
	storageDriver   string
	sqlitePath      string
	postgresDSN     string
	libsqlURL       string
	redisAddr       string
	redisDB         uint
	timezone        string
	initialVisits   uint
	initialAPICalls uint
	newsCacheTTL    string
	eventProvider   string
	kafkaBrokers    string
	kafkaTopic      string
	noMCP           bool

	debug     bool
	configDir string
	viper     *viper.Viper
}

const serveLongDesc string = `Run the chat relay HTTP server.

The server streams Coze bot replies to browsers as Server-Sent Events,
answers synchronous chat and news requests, keeps visit and API call
counters, and exposes the same operations to MCP clients at /mcp.

Configuration is layered: flags override CHATRELAY_* environment variables,
which override .chatrelay/config.toml, which overrides built-in defaults.
Changes to upstream.token and upstream.bot_id in config.toml are picked up
without a restart.

Examples:
  chatrelay serve --token pat_xxx --bot-id 7504643730922848271
  chatrelay serve --storage redis --redis localhost:6379
  chatrelay serve --events kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the chat relay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{flags: serveFlags}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveStringFlags)
			config.BindRegisteredFlags(v, cmd, cmder.flags, serveUintFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, cmder.flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, cmder.flags, config.FlagBaseURL, &cmder.baseURL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagToken, &cmder.token)
	config.AddStringFlag(cmd, cmder.flags, config.FlagBotID, &cmder.botID)
	config.AddStringFlag(cmd, cmder.flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, cmder.flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, cmder.flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, cmder.flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, cmder.flags, config.FlagLibSQLURL, &cmder.libsqlURL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagRedisAddr, &cmder.redisAddr)
	config.AddUintFlag(cmd, cmder.flags, config.FlagRedisDB, &cmder.redisDB)
	config.AddStringFlag(cmd, cmder.flags, config.FlagTimezone, &cmder.timezone)
	config.AddUintFlag(cmd, cmder.flags, config.FlagInitialVisits, &cmder.initialVisits)
	config.AddUintFlag(cmd, cmder.flags, config.FlagInitialAPICalls, &cmder.initialAPICalls)
	config.AddStringFlag(cmd, cmder.flags, config.FlagNewsCacheTTL, &cmder.newsCacheTTL)
	config.AddStringFlag(cmd, cmder.flags, config.FlagEventProvider, &cmder.eventProvider)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, cmder.flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Do not mount the MCP endpoint at /mcp")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	s, err := loadSettings(c.viper)
	if err != nil {
		return err
	}
	if s.token == "" || s.botID == "" {
		log.Warn("upstream token or bot id is empty; chat requests will be rejected upstream")
	}

	dir, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}

	var counter *stats.Counter
	if err := cliui.Step(out, "Opening stats storage", func() error {
		driver, err := newStatsDriver(ctx, s, dir, log)
		if err != nil {
			return err
		}
		counter, err = stats.NewCounter(ctx, driver, s.seed,
			stats.WithLocation(s.location),
			stats.WithLogger(log),
		)
		if err != nil {
			driver.Close()
			return err
		}
		return nil
	}); err != nil {
		return err
	}
	defer counter.Close()

	publisher, err := newPublisher(s, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	client, err := coze.NewClient(coze.Config{
		BaseURL: s.baseURL,
		Token:   s.token,
		BotID:   s.botID,
	})
	if err != nil {
		return fmt.Errorf("creating coze client: %w", err)
	}
	config.WatchCredentials(c.viper, func(creds config.Credentials) {
		client.SetCredentials(creds.Token, creds.BotID)
		log.Info("reloaded upstream credentials", "bot_id", creds.BotID)
	})

	r := relay.New(client,
		relay.WithTimeout(s.timeout),
		relay.WithLogger(log),
		relay.WithObserver(pool.Observe),
	)

	fetcher := news.NewFetcher(r, news.Config{
		Prompt: s.newsPrompt,
		UserID: s.newsUserID,
		TTL:    s.newsTTL,
		Logger: log,
	})

	server, err := api.NewServer(api.Config{
		ListenAddr: s.listen,
		DisableMCP: c.noMCP,
	}, r, counter, fetcher, log)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	log.Info("starting chat relay",
		"listen", s.listen,
		"upstream", s.baseURL,
		"storage", s.storageDriver,
		"events", s.eventProvider,
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("shutting down")
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down api server: %w", err)
		}
		if err := <-errChan; err != nil {
			log.Debug("api server stopped", "error", err)
		}
		return nil
	}
}
