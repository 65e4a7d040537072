package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aschepis/backscratcher/debot/assist"
	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/config"
	"github.com/aschepis/backscratcher/debot/content"
	"github.com/aschepis/backscratcher/debot/llm"
	debotlogger "github.com/aschepis/backscratcher/debot/logger"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/aschepis/backscratcher/debot/printer"
	"github.com/aschepis/backscratcher/debot/runtime"
	"github.com/aschepis/backscratcher/debot/server"
	"github.com/aschepis/backscratcher/debot/slackapp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var (
	logFile string
	pretty  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot's HTTP server and maintenance jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&logFile, "logfile", "", "Path to log file. If not set, logs to stdout")
	serveCmd.Flags().BoolVar(&pretty, "pretty", false, "Use pretty console output (only valid when logfile is not set)")
	serveCmd.MarkFlagsMutuallyExclusive("logfile", "pretty")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if logFile == "" {
		logFile = cfg.Log.File
	}
	if !pretty && logFile == "" {
		pretty = cfg.Log.Pretty
	}

	logger, err := debotlogger.InitWithOptions(logFile, pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info().Str("version", version).Str("addr", cfg.Server.Addr()).Msg("debot starting")

	if cfg.Slack.BotToken == "" {
		return errors.New("missing Slack bot token (SLACK_BOT_TOKEN or slack.bot_token)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------
	// 1. Storage
	// ---------------------------

	db, store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	// ---------------------------
	// 2. Memory, personality and content
	// ---------------------------

	ledger := memory.NewLedger(store, cfg.Memory, logger)
	fetcher := content.NewFetcher(logger, cfg.Content)
	engine := personality.NewEngine(logger, store,
		personality.WithOptions(cfg.Personality),
		personality.WithContextSource(ledger),
		personality.WithImageSearcher(fetcher),
	)

	// ---------------------------
	// 3. Generation chains
	// ---------------------------

	chains := config.NewChainBuilder(cfg, logger)
	chatChain, err := chains.Chain(config.UseChat)
	if err != nil {
		return fmt.Errorf("failed to build chat providers: %w", err)
	}
	orch := chat.NewOrchestrator(logger, engine, ledger, chatChain,
		chat.WithOptions(cfg.Chat),
		chat.WithContent(fetcher),
	)

	commitGen := assistChain(chains, config.UseCommit, chatChain, logger)
	errorGen := assistChain(chains, config.UseErrors, chatChain, logger)
	services := bot.Services{
		Chat:        orch,
		Memory:      ledger,
		Personality: engine,
		Commits:     assist.NewCommitFormatter(logger, commitGen, assist.WithTimeout(timeoutOf(cfg.Generation.Commit))),
		Errors:      assist.NewErrorAnalyzer(logger, errorGen, assist.WithTimeout(timeoutOf(cfg.Generation.Errors))),
		Settings:    store,
	}

	// ---------------------------
	// 4. Slack and the bot
	// ---------------------------

	slackClient := slackapp.NewClient(logger, cfg.Slack.BotToken)
	if cfg.Bot.BotUserID == "" {
		userID, err := slackClient.AuthTest(ctx)
		if err != nil {
			return fmt.Errorf("failed to discover bot user: %w", err)
		}
		cfg.Bot.BotUserID = userID
		logger.Info().Str("bot_user_id", userID).Msg("Discovered bot user")
	}

	b, err := bot.New(logger, slackClient, services, cfg.Bot)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	var alerts server.PrinterAlerts
	if cfg.Printer.SecretKey != "" {
		alerts = printer.NewAnalyzer(logger, cfg.Printer.SecretKey)
	}
	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr(),
		SigningSecret: cfg.Slack.SigningSecret,
		AlertChannel:  cfg.Printer.Channel,
		Version:       version,
		Logger:        logger,
	}, b, alerts, slackClient)

	// ---------------------------
	// 5. Maintenance jobs
	// ---------------------------

	sched, err := runtime.NewScheduler(logger, runtime.MemorySweepJob(ledger, cfg.Schedules["memory_sweep"]))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	// ---------------------------
	// 6. Run until signalled
	// ---------------------------

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := b.Announce(gctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to send startup message")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		orch.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info().Msg("debot stopped")
	return nil
}

// assistChain builds the chain for use, falling back to the chat chain when
// none of its providers is available.
func assistChain(chains *config.ChainBuilder, use string, fallback *llm.Chain, logger zerolog.Logger) *llm.Chain {
	gen, err := chains.Chain(use)
	if err != nil {
		logger.Warn().Err(err).Str("use", use).Msg("falling back to chat providers")
		return fallback
	}
	return gen
}

// timeoutOf sums the per-provider timeouts of prefs.
func timeoutOf(prefs []config.LLMPreference) time.Duration {
	var total time.Duration
	for _, p := range prefs {
		total += p.Timeout
	}
	return total
}
