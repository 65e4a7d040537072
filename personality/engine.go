// Package personality holds DeBot's global, slowly drifting personality:
// trait values nudged by every message, per-user relationship history, the
// system-prompt fragment derived from both, and the warning DMs sent to
// users who keep insulting the bot.
package personality

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
)

// Messenger delivers direct messages.
type Messenger interface {
	PostDirectMessage(ctx context.Context, userID string, msg message.Message) error
}

// ContextSource renders what is remembered about a user.
type ContextSource interface {
	Context(ctx context.Context, userID string, mentioned []string) (string, error)
}

// ImageSearcher finds an image for a query. ok is false when nothing was found.
type ImageSearcher interface {
	TopImage(ctx context.Context, query string) (url string, ok bool)
}

// Picker returns a uniformly random index in [0, n). n is always positive.
type Picker func(n int) int

// Options tunes the warning rules.
type Options struct {
	InsultThreshold int           `yaml:"insult_threshold,omitempty"`
	WarningCooldown time.Duration `yaml:"warning_cooldown,omitempty"`
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		InsultThreshold: 3,
		WarningCooldown: 24 * time.Hour,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOptions overrides the warning rules. Zero fields keep their defaults.
func WithOptions(opts Options) EngineOption {
	return func(e *Engine) {
		if opts.InsultThreshold > 0 {
			e.opts.InsultThreshold = opts.InsultThreshold
		}
		if opts.WarningCooldown > 0 {
			e.opts.WarningCooldown = opts.WarningCooldown
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithPicker sets the random index source used when choosing warning content.
func WithPicker(pick Picker) EngineOption {
	return func(e *Engine) { e.pick = pick }
}

// WithContextSource sets where warning ammunition comes from.
func WithContextSource(src ContextSource) EngineOption {
	return func(e *Engine) { e.memory = src }
}

// WithImageSearcher sets the searcher used to decorate warnings.
func WithImageSearcher(images ImageSearcher) EngineOption {
	return func(e *Engine) { e.images = images }
}

// WithToneRules replaces the tone rule table.
func WithToneRules(rules []ToneRule) EngineOption {
	return func(e *Engine) { e.rules = rules }
}

// Engine reads and evolves the personality record.
type Engine struct {
	store  kv.Store
	memory ContextSource
	images ImageSearcher
	rules  []ToneRule
	opts   Options
	now    func() time.Time
	pick   Picker
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger, store kv.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		rules:  DefaultToneRules(),
		opts:   DefaultOptions(),
		now:    time.Now,
		pick:   rand.IntN,
		logger: logger.With().Str("component", "personality").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options returns the effective warning rules.
func (e *Engine) Options() Options { return e.opts }

// Classify scores text with the engine's tone rules.
func (e *Engine) Classify(text string) Tone {
	return Classify(e.rules, text)
}

// Get loads the personality, initialising it on first use. A storage
// failure is logged and the defaults are returned.
func (e *Engine) Get(ctx context.Context) (*State, error) {
	state := DefaultState(e.now())
	found, err := kv.GetJSON(ctx, e.store, StateKey, &state)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to load personality, using defaults")
		fresh := DefaultState(e.now())
		return &fresh, nil
	}
	if found {
		if state.UserInteractions == nil {
			state.UserInteractions = map[string]*InteractionRecord{}
		}
		return &state, nil
	}

	if err := e.create(ctx, state); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist default personality")
	}
	return &state, nil
}

func (e *Engine) create(ctx context.Context, state State) error {
	_, err := kv.UpdateJSON(ctx, e.store, StateKey,
		func() State { return state },
		func(current *State) error { return nil },
	)
	return err
}

// Reset overwrites the personality with the defaults.
func (e *Engine) Reset(ctx context.Context) error {
	if err := kv.SetJSON(ctx, e.store, StateKey, DefaultState(e.now())); err != nil {
		e.logger.Error().Err(err).Msg("failed to reset personality")
		return fmt.Errorf("reset personality: %w", err)
	}
	e.logger.Info().Msg("personality reset to defaults")
	return nil
}

// update runs mutate under optimistic concurrency control.
func (e *Engine) update(ctx context.Context, mutate func(*State) error) (*State, error) {
	state, err := kv.UpdateJSON(ctx, e.store, StateKey,
		func() State { return DefaultState(e.now()) },
		func(s *State) error {
			if s.UserInteractions == nil {
				s.UserInteractions = map[string]*InteractionRecord{}
			}
			return mutate(s)
		})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Evolve classifies text and folds it into the personality. An insult makes
// DeBot sassier and less friendly, kindness does the opposite at half the
// rate. Every call records an experience. On failure the current state is
// returned alongside the error.
func (e *Engine) Evolve(ctx context.Context, text, userID string) (*State, error) {
	tone := e.Classify(text)
	now := e.now()

	state, err := e.update(ctx, func(s *State) error {
		switch {
		case tone.Insult:
			s.Traits.Sassiness = clamp(s.Traits.Sassiness+0.1, 0, 1)
			s.Traits.Friendliness = clamp(s.Traits.Friendliness-0.1, 0.2, 1)
			if userID != "" {
				rec := s.user(userID)
				rec.InsultCount++
				rec.LastInsult = stamp(now)
			}
		case tone.Kind:
			s.Traits.Friendliness = clamp(s.Traits.Friendliness+0.05, 0, 1)
			s.Traits.Sassiness = clamp(s.Traits.Sassiness-0.05, 0.1, 1)
			if userID != "" {
				rec := s.user(userID)
				rec.ComplimentCount++
				rec.LastCompliment = stamp(now)
			}
		}

		s.RecentExperiences = append([]Experience{{
			Kind:      tone.Experience(),
			Timestamp: now,
			UserID:    userID,
		}}, s.RecentExperiences...)
		if len(s.RecentExperiences) > maxExperiences {
			s.RecentExperiences = s.RecentExperiences[:maxExperiences]
		}
		s.LastUpdate = now
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("failed to evolve personality")
		current, _ := e.Get(ctx)
		return current, fmt.Errorf("evolve personality: %w", err)
	}

	e.logger.Debug().
		Str("user_id", userID).
		Bool("insult", tone.Insult).
		Bool("kind", tone.Kind).
		Float64("sassiness", state.Traits.Sassiness).
		Float64("friendliness", state.Traits.Friendliness).
		Msg("personality evolved")
	return state, nil
}

// History returns a copy of the interaction record for userID, or an empty
// record when DeBot has never interacted with them.
func (e *Engine) History(ctx context.Context, userID string) (InteractionRecord, error) {
	state, err := e.Get(ctx)
	if err != nil {
		return *newInteractionRecord(), err
	}
	rec, _ := state.Interaction(userID)
	return rec, nil
}

// StoreUserMessage remembers one of the user's last messages.
func (e *Engine) StoreUserMessage(ctx context.Context, userID, text, channel string) error {
	now := e.now()
	_, err := e.update(ctx, func(s *State) error {
		rec := s.user(userID)
		rec.LastMessages = append([]RecentMessage{{Text: text, Timestamp: now, Channel: channel}}, rec.LastMessages...)
		if len(rec.LastMessages) > maxLastMessages {
			rec.LastMessages = rec.LastMessages[:maxLastMessages]
		}
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store user message")
		return fmt.Errorf("store user message: %w", err)
	}
	return nil
}

// StoreMemorableEvent records a notable thing about the user.
func (e *Engine) StoreMemorableEvent(ctx context.Context, userID, event string) error {
	now := e.now()
	_, err := e.update(ctx, func(s *State) error {
		rec := s.user(userID)
		rec.MemorableEvents = append([]MemorableEvent{{Event: event, Timestamp: now}}, rec.MemorableEvents...)
		if len(rec.MemorableEvents) > maxMemorableEvent {
			rec.MemorableEvents = rec.MemorableEvents[:maxMemorableEvent]
		}
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store memorable event")
		return fmt.Errorf("store memorable event: %w", err)
	}
	return nil
}

// ShouldWarn reports whether userID has insulted DeBot often enough to earn a
// warning and has not been warned within the cooldown.
func (e *Engine) ShouldWarn(ctx context.Context, userID string) (bool, error) {
	state, err := e.Get(ctx)
	if err != nil {
		return false, err
	}
	rec, ok := state.Interaction(userID)
	if !ok {
		return false, nil
	}
	return e.dueForWarning(rec), nil
}

func (e *Engine) dueForWarning(rec InteractionRecord) bool {
	if rec.InsultCount < e.opts.InsultThreshold {
		return false
	}
	return rec.LastWarning == nil || e.now().Sub(*rec.LastWarning) > e.opts.WarningCooldown
}

// ErrNoMessenger is returned by SendWarning without a Messenger.
var ErrNoMessenger = errors.New("personality: no messenger")

// SendWarning DMs userID a personalised warning and, once delivered, records
// it and makes DeBot more vengeful. Nothing is recorded if delivery fails.
func (e *Engine) SendWarning(ctx context.Context, messenger Messenger, userID string) error {
	if messenger == nil {
		return ErrNoMessenger
	}

	rec, err := e.History(ctx, userID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var memCtx string
	if e.memory != nil {
		memCtx, err = e.memory.Context(ctx, userID, nil)
		if err != nil {
			e.logger.Warn().Err(err).Str("user_id", userID).Msg("warning without memory context")
			memCtx = ""
		}
	}

	var imageURL string
	if e.images != nil {
		if url, ok := e.images.TopImage(ctx, MemeQuery(memCtx, e.pick)); ok {
			imageURL = url
		}
	}

	msg := BuildWarning(memCtx, rec, imageURL, e.pick)
	if err := messenger.PostDirectMessage(ctx, userID, msg); err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("failed to deliver warning")
		return fmt.Errorf("send warning: %w", err)
	}

	now := e.now()
	state, err := e.update(ctx, func(s *State) error {
		r := s.user(userID)
		r.WarningsReceived++
		r.LastWarning = stamp(now)
		s.Traits.Vengefulness = clamp(s.Traits.Vengefulness+0.1, 0, 1)
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", userID).Msg("warning sent but not recorded")
		return fmt.Errorf("record warning: %w", err)
	}

	e.logger.Info().
		Str("user_id", userID).
		Int("warnings_received", state.UserInteractions[userID].WarningsReceived).
		Float64("vengefulness", state.Traits.Vengefulness).
		Msg("warning sent")
	return nil
}
