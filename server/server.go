// Package server implements DeBot's HTTP endpoints: the Slack Events API,
// slash commands, the 3D printer webhook and a health check.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/aschepis/backscratcher/debot/printer"
	"github.com/rs/zerolog"
)

// Bot receives the events and commands the server decodes. *bot.Bot
// implements it.
type Bot interface {
	HandleMessage(ctx context.Context, ev bot.MessageEvent)
	HandleCommand(ctx context.Context, cmd bot.Command)
}

// PrinterAlerts turns printer webhooks into alerts. *printer.Analyzer
// implements it.
type PrinterAlerts interface {
	Handle(p printer.Payload) (message.Message, bool)
}

// Poster posts printer alerts. *slackapp.Client implements it.
type Poster interface {
	PostMessage(ctx context.Context, channel, threadTS string, msg message.Message) (string, error)
}

// Config holds server configuration options.
type Config struct {
	Addr string
	// SigningSecret verifies Slack requests. Empty disables verification.
	SigningSecret string
	// AlertChannel receives printer alerts.
	AlertChannel string
	Version      string
	Logger       zerolog.Logger
}

// Server is DeBot's HTTP server.
type Server struct {
	cfg     Config
	bot     Bot
	printer PrinterAlerts
	poster  Poster
	http    *http.Server
	logger  zerolog.Logger

	startedAt time.Time

	// background tracks events still being handled after their request
	// was acknowledged.
	background sync.WaitGroup
}

// New creates a server. printer and poster may be nil, which disables the
// printer webhook.
func New(cfg Config, b Bot, alerts PrinterAlerts, poster Poster) *Server {
	s := &Server{
		cfg:     cfg,
		bot:     b,
		printer: alerts,
		poster:  poster,
		logger:  cfg.Logger.With().Str("component", "http-server").Logger(),
	}
	if cfg.SigningSecret == "" {
		s.logger.Warn().Msg("no signing secret configured, Slack requests will not be verified")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("POST /slack/commands", s.handleCommands)
	mux.HandleFunc("POST /printer-webhook", s.handlePrinterWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.logging(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Serve serves HTTP on listener until Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.startedAt = time.Now()
	s.logger.Info().Str("address", listener.Addr().String()).Msg("Starting HTTP server")
	if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe serves HTTP on the configured address.
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Shutdown stops accepting requests and waits for in-flight events.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Gracefully stopping HTTP server")
	err := s.http.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// Wait blocks until background event handling finishes.
func (s *Server) Wait() { s.background.Wait() }

// dispatch runs fn after the request has been acknowledged.
func (s *Server) dispatch(r *http.Request, fn func(ctx context.Context)) {
	ctx := context.WithoutCancel(r.Context())
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn(ctx)
	}()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logging logs each request.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		if rec.status >= http.StatusInternalServerError {
			s.logger.Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", duration).
				Msg("Request failed")
			return
		}
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("Request completed")
	})
}
