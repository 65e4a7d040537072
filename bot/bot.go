// Package bot routes slash commands and channel messages to DeBot's
// services. It knows nothing about the chat platform beyond the Platform
// interface.
package bot

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/aschepis/backscratcher/debot/assist"
	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Chatter answers chat messages. *chat.Orchestrator implements it.
type Chatter interface {
	Chat(ctx context.Context, req chat.Request, messenger personality.Messenger) string
}

// Memory captures what users say. *memory.Ledger implements it.
type Memory interface {
	FindMemorableDetails(text string) (memory.Detail, bool)
	Store(ctx context.Context, userID, text, displayName string, importance float64) error
	StoreMention(ctx context.Context, mentionedID, text, observerID string) error
}

// Resetter restores the default personality. *personality.Engine implements it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// CommitFormatter formats commit messages. *assist.CommitFormatter implements it.
type CommitFormatter interface {
	Format(ctx context.Context, message string) (string, error)
}

// ErrorAnalyzer explains errors. *assist.ErrorAnalyzer implements it.
type ErrorAnalyzer interface {
	Analyze(ctx context.Context, errText string) assist.Analysis
}

// Services are the collaborators a Bot dispatches to.
type Services struct {
	Chat        Chatter
	Memory      Memory
	Personality Resetter
	Commits     CommitFormatter
	Errors      ErrorAnalyzer
	// Settings holds runtime toggles such as the startup message flag.
	Settings kv.Store
}

// PurgeOptions paces /purgeee.
type PurgeOptions struct {
	MaxMessages   int           `yaml:"max_messages,omitempty"`
	PageSize      int           `yaml:"page_size,omitempty"`
	ChunkSize     int           `yaml:"chunk_size,omitempty"`
	ProgressEvery int           `yaml:"progress_every,omitempty"`
	Window        time.Duration `yaml:"window,omitempty"`
	PageDelay     time.Duration `yaml:"page_delay,omitempty"`
	DeleteDelay   time.Duration `yaml:"delete_delay,omitempty"`
	ChunkDelay    time.Duration `yaml:"chunk_delay,omitempty"`
	TimeoutPause  time.Duration `yaml:"timeout_pause,omitempty"`
	MaxRetries    uint64        `yaml:"max_retries,omitempty"`
}

// Options configures a Bot.
type Options struct {
	// BotUserID is DeBot's own user ID; mentions of it trigger replies.
	BotUserID string `yaml:"bot_user_id"`
	// BotName also triggers replies when it appears in a message.
	BotName string `yaml:"bot_name,omitempty"`
	// Admins may run the privileged commands.
	Admins []string `yaml:"admins"`
	// AnnounceChannel receives the startup message.
	AnnounceChannel   string       `yaml:"announce_channel"`
	DedupeCapacity    int          `yaml:"dedupe_capacity,omitempty"`
	MaxMentions       int          `yaml:"max_mentions,omitempty"`
	SummaryImportance float64      `yaml:"summary_importance,omitempty"`
	Purge             PurgeOptions `yaml:"purge,omitempty"`
}

// DefaultOptions returns the production settings without any IDs.
func DefaultOptions() Options {
	return Options{
		BotName:           "debot",
		DedupeCapacity:    1000,
		MaxMentions:       3,
		SummaryImportance: 0.6,
		Purge: PurgeOptions{
			MaxMessages:   1000,
			PageSize:      200,
			ChunkSize:     5,
			ProgressEvery: 20,
			Window:        24 * time.Hour,
			PageDelay:     time.Second,
			DeleteDelay:   2 * time.Second,
			ChunkDelay:    3 * time.Second,
			TimeoutPause:  5 * time.Second,
			MaxRetries:    3,
		},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BotName == "" {
		o.BotName = d.BotName
	}
	if o.DedupeCapacity <= 0 {
		o.DedupeCapacity = d.DedupeCapacity
	}
	if o.MaxMentions <= 0 {
		o.MaxMentions = d.MaxMentions
	}
	if o.SummaryImportance <= 0 {
		o.SummaryImportance = d.SummaryImportance
	}

	p, dp := &o.Purge, d.Purge
	if p.MaxMessages <= 0 {
		p.MaxMessages = dp.MaxMessages
	}
	if p.PageSize <= 0 {
		p.PageSize = dp.PageSize
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = dp.ChunkSize
	}
	if p.ProgressEvery <= 0 {
		p.ProgressEvery = dp.ProgressEvery
	}
	if p.Window <= 0 {
		p.Window = dp.Window
	}
	if p.PageDelay <= 0 {
		p.PageDelay = dp.PageDelay
	}
	if p.DeleteDelay <= 0 {
		p.DeleteDelay = dp.DeleteDelay
	}
	if p.ChunkDelay <= 0 {
		p.ChunkDelay = dp.ChunkDelay
	}
	if p.TimeoutPause <= 0 {
		p.TimeoutPause = dp.TimeoutPause
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = dp.MaxRetries
	}
	return o
}

// Option configures a Bot.
type Option func(*Bot)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithSleep replaces the pause used while pacing purges.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(b *Bot) { b.sleep = sleep }
}

// Bot dispatches inbound events.
type Bot struct {
	platform  Platform
	services  Services
	opts      Options
	processed *lru.Cache[string, struct{}]
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	logger    zerolog.Logger

	mentionPattern *regexp.Regexp
	namePattern    *regexp.Regexp
}

// New creates a Bot.
func New(logger zerolog.Logger, platform Platform, services Services, opts Options, bopts ...Option) (*Bot, error) {
	opts = opts.withDefaults()
	processed, err := lru.New[string, struct{}](opts.DedupeCapacity)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}

	b := &Bot{
		platform:  platform,
		services:  services,
		opts:      opts,
		processed: processed,
		now:       time.Now,
		sleep:     sleepContext,
		logger:    logger.With().Str("component", "bot").Logger(),

		namePattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(opts.BotName)),
	}
	if opts.BotUserID != "" {
		b.mentionPattern = regexp.MustCompile(`(?i)<@` + regexp.QuoteMeta(opts.BotUserID) + `>`)
	}
	for _, opt := range bopts {
		opt(b)
	}
	return b, nil
}

func (b *Bot) isAdmin(userID string) bool {
	return slices.Contains(b.opts.Admins, userID)
}

// eventLogger tags the logs of one inbound event with a fresh request ID.
func (b *Bot) eventLogger(kind, userID string) zerolog.Logger {
	return b.logger.With().
		Str("request_id", uuid.NewString()).
		Str("event", kind).
		Str("user_id", userID).
		Logger()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
