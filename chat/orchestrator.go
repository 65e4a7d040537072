// Package chat turns one user message into one DeBot reply. It folds the
// message into the personality, assembles what DeBot remembers about the
// user into the system prompt, asks the provider chain for an answer and
// dresses the answer up according to DeBot's mood.
package chat

import (
	"context"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aschepis/backscratcher/debot/llm"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/rs/zerolog"
)

// Generator produces text from a request. *llm.Chain implements it.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Result, error)
}

// Content supplies GIFs and jokes for the canned intents.
type Content interface {
	SearchImage(ctx context.Context, query string) (string, bool)
	FetchJoke(ctx context.Context) (string, bool)
}

// Request is one inbound message.
type Request struct {
	Text     string
	UserID   string
	UserName string
	Channel  string
}

// Options tunes generation.
type Options struct {
	Temperature    float64       `yaml:"temperature,omitempty"`
	MaxTokens      int64         `yaml:"max_tokens,omitempty"`
	WarningTimeout time.Duration `yaml:"warning_timeout,omitempty"`
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		Temperature:    0.7,
		MaxTokens:      150,
		WarningTimeout: 30 * time.Second,
	}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOptions overrides the tuning. Zero fields keep their defaults.
func WithOptions(opts Options) OrchestratorOption {
	return func(o *Orchestrator) {
		if opts.Temperature > 0 {
			o.opts.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			o.opts.MaxTokens = opts.MaxTokens
		}
		if opts.WarningTimeout > 0 {
			o.opts.WarningTimeout = opts.WarningTimeout
		}
	}
}

// WithContent enables the GIF and joke intents.
func WithContent(c Content) OrchestratorOption {
	return func(o *Orchestrator) { o.content = c }
}

// WithPicker sets the random index source used for fallback replies.
func WithPicker(pick func(n int) int) OrchestratorOption {
	return func(o *Orchestrator) { o.pick = pick }
}

var intentWords = regexp.MustCompile(`(?i)gif|show me`)

// Orchestrator answers chat messages.
type Orchestrator struct {
	engine  *personality.Engine
	memory  personality.ContextSource
	gen     Generator
	content Content
	opts    Options
	pick    func(n int) int
	logger  zerolog.Logger

	mu       sync.Mutex
	warning  map[string]bool
	inflight sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	logger zerolog.Logger,
	engine *personality.Engine,
	mem personality.ContextSource,
	gen Generator,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		engine:  engine,
		memory:  mem,
		gen:     gen,
		opts:    DefaultOptions(),
		pick:    rand.IntN,
		warning: make(map[string]bool),
		logger:  logger.With().Str("component", "chat").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Chat answers req. It never fails: provider outages produce a canned
// fallback and anything unexpected produces ErrorReply. messenger is used
// for warning DMs and may be nil.
func (o *Orchestrator) Chat(ctx context.Context, req Request, messenger personality.Messenger) (reply string) {
	log := o.logger.With().Str("user_id", req.UserID).Str("channel", req.Channel).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("chat panicked")
			reply = ErrorReply
		}
	}()

	if answer, ok := o.intent(ctx, req.Text); ok {
		return answer
	}

	state, err := o.engine.Evolve(ctx, req.Text, req.UserID)
	if err != nil {
		log.Warn().Err(err).Msg("continuing with unevolved personality")
	}
	if state == nil {
		return ErrorReply
	}

	var userCtx string
	if req.UserID != "" {
		if err := o.engine.StoreUserMessage(ctx, req.UserID, req.Text, req.Channel); err != nil {
			log.Warn().Err(err).Msg("user message not stored")
		}
		if messenger != nil {
			o.maybeWarn(ctx, req.UserID, messenger)
		}
		userCtx = o.userContext(ctx, req)
	} else if req.UserName != "" {
		userCtx = UserContext(req.UserName, "", nil)
	}

	result, err := o.gen.Generate(ctx, &llm.Request{
		System:      SystemPrompt(state, req.UserID, userCtx),
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, req.Text)},
		MaxTokens:   o.opts.MaxTokens,
		Temperature: llm.Float(o.opts.Temperature),
	})
	if err != nil {
		log.Error().Err(err).Msg("all providers failed, using fallback reply")
		return Fallback(state, req.UserID, req.UserName, o.pick)
	}

	log.Debug().Str("provider", result.Provider).Int("attempts", result.Attempts).Msg("reply generated")
	return Personalize(result.Text, state, req.UserID)
}

func (o *Orchestrator) intent(ctx context.Context, text string) (string, bool) {
	if o.content == nil {
		return "", false
	}
	lower := strings.ToLower(text)

	if strings.Contains(lower, "gif") || strings.Contains(lower, "show me") {
		term := strings.TrimSpace(intentWords.ReplaceAllString(text, ""))
		if url, ok := o.content.SearchImage(ctx, term); ok {
			return `Here's a GIF for "` + term + `": ` + url, true
		}
	}

	if strings.Contains(lower, "joke") {
		if joke, ok := o.content.FetchJoke(ctx); ok {
			return "Here's a joke for you: " + joke + " :laughballs:", true
		}
	}
	return "", false
}

func (o *Orchestrator) userContext(ctx context.Context, req Request) string {
	var memCtx string
	if o.memory != nil {
		var err error
		memCtx, err = o.memory.Context(ctx, req.UserID, memory.ExtractMentionedUsers(req.Text))
		if err != nil {
			o.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("memory context unavailable")
			memCtx = ""
		}
	}

	history, err := o.engine.History(ctx, req.UserID)
	if err != nil {
		o.logger.Warn().Err(err).Str("user_id", req.UserID).Msg("interaction history unavailable")
	}
	return UserContext(req.UserName, memCtx, history.LastMessages)
}

// maybeWarn starts a warning DM in the background when one is due. At most
// one warning per user is in flight.
func (o *Orchestrator) maybeWarn(ctx context.Context, userID string, messenger personality.Messenger) {
	due, err := o.engine.ShouldWarn(ctx, userID)
	if err != nil || !due {
		return
	}

	o.mu.Lock()
	if o.warning[userID] {
		o.mu.Unlock()
		return
	}
	o.warning[userID] = true
	o.mu.Unlock()

	warnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.WarningTimeout)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer cancel()
		defer func() {
			o.mu.Lock()
			delete(o.warning, userID)
			o.mu.Unlock()
		}()

		if err := o.engine.SendWarning(warnCtx, messenger, userID); err != nil {
			o.logger.Warn().Err(err).Str("user_id", userID).Msg("warning not sent")
		}
	}()
}

// Wait blocks until background warnings have finished.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}
