// Package memory implements the per-user memory ledger: a bounded,
// importance-ranked list of facts for every user DeBot talks to, rendered
// back into prompt context on later conversations.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	recencyBonus = 0.2
	recencyDecay = 0.01
)

// ErrEmptyText is returned when asked to remember nothing.
var ErrEmptyText = errors.New("memory: text is empty")

// Ledger stores and renders user memories.
type Ledger struct {
	store  kv.Store
	opts   Options
	rules  []Rule
	now    func() time.Time
	logger zerolog.Logger
}

// NewLedger creates a Ledger on top of store.
func NewLedger(store kv.Store, opts Options, logger zerolog.Logger) *Ledger {
	logger = logger.With().Str("component", "memory_ledger").Logger()
	return &Ledger{
		store:  store,
		opts:   opts.withDefaults(),
		rules:  DefaultRules(),
		now:    time.Now,
		logger: logger,
	}
}

// SetClock overrides the time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// Options returns the effective tuning.
func (l *Ledger) Options() Options { return l.opts }

// Record loads a user's record, returning an empty one if none exists.
func (l *Ledger) Record(ctx context.Context, userID string) (UserRecord, error) {
	rec := newRecord(userID)
	if _, err := kv.GetJSON(ctx, l.store, Key(userID), &rec); err != nil {
		return newRecord(userID), fmt.Errorf("load memory for %s: %w", userID, err)
	}
	return rec, nil
}

// Store remembers text about userID. A non-empty displayName replaces the
// stored one. Text equal (ignoring case) to one of the most recent items is
// skipped and reported as success. When the record exceeds the word budget
// it is pruned by importance.
func (l *Ledger) Store(ctx context.Context, userID, text, displayName string, importance float64) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	l.logger.Debug().
		Str("method", "Store").
		Str("user_id", userID).
		Str("text", truncateString(text, 40)).
		Float64("importance", importance).
		Msg("called")

	skipped := false
	rec, err := kv.UpdateJSON(ctx, l.store, Key(userID),
		func() UserRecord { return newRecord(userID) },
		func(rec *UserRecord) error {
			skipped = false
			if rec.hasRecent(text, l.opts.DedupeWindow) {
				skipped = true
				return kv.ErrNoChange
			}
			if displayName != "" {
				rec.DisplayName = displayName
			}
			rec.Items = append([]Item{{
				Text:       text,
				Timestamp:  l.now(),
				Importance: importance,
			}}, rec.Items...)

			if rec.WordCount() > l.opts.WordBudget {
				before := len(rec.Items)
				rec.Items = prune(rec.Items, l.opts.WordBudget, l.opts.ImportanceFloor)
				l.logger.Debug().
					Str("user_id", userID).
					Int("before", before).
					Int("after", len(rec.Items)).
					Msg("pruned memory record")
			}
			return nil
		})
	if err != nil {
		l.logger.Error().Err(err).Str("user_id", userID).Msg("failed to store memory")
		return fmt.Errorf("store memory for %s: %w", userID, err)
	}

	if skipped {
		l.logger.Debug().Str("user_id", userID).Msg("skipping duplicate memory")
		return nil
	}
	l.logger.Info().
		Str("user_id", userID).
		Int("items", len(rec.Items)).
		Int("words", rec.WordCount()).
		Msg("stored memory")
	return nil
}

// prune ranks items by importance plus a recency bonus that shrinks with
// position, then keeps them greedily while the budget allows. Items below
// floor are always dropped. The input slice is reordered.
func prune(items []Item, budget int, floor float64) []Item {
	for i := range items {
		adjusted := items[i].Importance + math.Max(0, recencyBonus-recencyDecay*float64(i))
		items[i].AdjustedImportance = &adjusted
	}
	sort.SliceStable(items, func(a, b int) bool {
		return *items[a].AdjustedImportance > *items[b].AdjustedImportance
	})

	kept := make([]Item, 0, len(items))
	words := 0
	for _, item := range items {
		n := countWords(item.Text)
		if words+n <= budget && item.Importance >= floor {
			kept = append(kept, item)
			words += n
		}
	}
	return kept
}

// Context renders what is known about userID and about each mentioned user
// as prompt-ready text. It returns "" when nothing is known.
func (l *Ledger) Context(ctx context.Context, userID string, mentioned []string) (string, error) {
	var parts []string

	own, err := l.Record(ctx, userID)
	if err != nil {
		l.logger.Error().Err(err).Str("user_id", userID).Msg("failed to load memory context")
		return "", err
	}
	if len(own.Items) > 0 {
		name := own.DisplayName
		if name == "" {
			name = "this user"
		}
		parts = append(parts, renderSection(
			fmt.Sprintf("Previous interactions with %s:", name),
			lo.Map(own.Items, func(it Item, _ int) string { return it.Text }),
		))
	}

	for _, id := range mentioned {
		if id == userID {
			continue
		}
		rec, err := l.Record(ctx, id)
		if err != nil {
			l.logger.Warn().Err(err).Str("user_id", id).Msg("skipping mentioned user")
			continue
		}
		if len(rec.Items) == 0 {
			continue
		}
		name := rec.DisplayName
		if name == "" {
			name = "mentioned user"
		}
		top := topByImportance(rec.Items, l.opts.MentionedItems)
		parts = append(parts, renderSection(
			fmt.Sprintf("What I know about <@%s> (%s):", id, name),
			lo.Map(top, func(it Item, _ int) string { return it.Text }),
		))
	}

	return strings.Join(parts, "\n\n"), nil
}

func renderSection(heading string, lines []string) string {
	return heading + "\n- " + strings.Join(lines, "\n- ")
}

func topByImportance(items []Item, n int) []Item {
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].Importance > sorted[b].Importance
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// StoreMention records on mentionedID's record that observerID said text
// about them.
func (l *Ledger) StoreMention(ctx context.Context, mentionedID, text, observerID string) error {
	mentioned, err := l.Record(ctx, mentionedID)
	if err != nil {
		l.logger.Warn().Err(err).Str("user_id", mentionedID).Msg("mentioned user record unavailable")
	}
	observer, err := l.Record(ctx, observerID)
	if err != nil {
		l.logger.Warn().Err(err).Str("user_id", observerID).Msg("observer record unavailable")
	}

	label := fmt.Sprintf("<@%s>", observerID)
	if observer.DisplayName != "" {
		label = fmt.Sprintf("%s (<@%s>)", observer.DisplayName, observerID)
	}
	return l.Store(ctx, mentionedID,
		fmt.Sprintf("Mentioned by %s: %s", label, text),
		mentioned.DisplayName,
		l.opts.MentionImportance,
	)
}

// Sweep re-applies the prune rule to every stored record over the word
// budget and returns how many records changed.
func (l *Ledger) Sweep(ctx context.Context) (int, error) {
	keys, err := l.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list memory records: %w", err)
	}

	pruned := 0
	for _, key := range keys {
		userID := strings.TrimPrefix(key, KeyPrefix)
		changed := false
		_, err := kv.UpdateJSON(ctx, l.store, key,
			func() UserRecord { return newRecord(userID) },
			func(rec *UserRecord) error {
				changed = false
				if rec.WordCount() <= l.opts.WordBudget {
					return kv.ErrNoChange
				}
				rec.Items = prune(rec.Items, l.opts.WordBudget, l.opts.ImportanceFloor)
				changed = true
				return nil
			})
		if err != nil {
			l.logger.Error().Err(err).Str("user_id", userID).Msg("sweep failed for record")
			continue
		}
		if changed {
			pruned++
		}
	}

	l.logger.Info().Int("records", len(keys)).Int("pruned", pruned).Msg("memory sweep complete")
	return pruned, nil
}
