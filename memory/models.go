package memory

import (
	"strings"
	"time"
)

// KeyPrefix prefixes every per-user memory record in the key-value store.
const KeyPrefix = "user_memory_"

// Key returns the storage key for a user's memory record.
func Key(userID string) string { return KeyPrefix + userID }

// Item is a single remembered fact.
type Item struct {
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance"`
	// AdjustedImportance is importance plus the recency bonus assigned the
	// last time the record was pruned.
	AdjustedImportance *float64 `json:"adjustedImportance,omitempty"`
}

// UserRecord holds everything remembered about one user.
// Items are most-recent-first until a prune re-sorts them by importance.
type UserRecord struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
	Items       []Item `json:"items"`
}

// WordCount returns the number of whitespace-separated words across all items.
func (r *UserRecord) WordCount() int {
	total := 0
	for _, item := range r.Items {
		total += countWords(item.Text)
	}
	return total
}

// hasRecent reports whether text case-insensitively equals one of the first
// window items.
func (r *UserRecord) hasRecent(text string, window int) bool {
	for i, item := range r.Items {
		if i >= window {
			break
		}
		if strings.EqualFold(item.Text, text) {
			return true
		}
	}
	return false
}

func newRecord(userID string) UserRecord {
	return UserRecord{UserID: userID, Items: []Item{}}
}

// Options tunes the ledger. Zero values are replaced by DefaultOptions.
type Options struct {
	// WordBudget caps the total words kept per user.
	WordBudget int `yaml:"word_budget,omitempty"`
	// ImportanceFloor evicts items below it whenever a prune runs.
	ImportanceFloor float64 `yaml:"importance_floor,omitempty"`
	// DedupeWindow is how many recent items are checked for duplicates.
	DedupeWindow int `yaml:"dedupe_window,omitempty"`
	// MentionedItems caps the items shown for each mentioned user.
	MentionedItems int `yaml:"mentioned_items,omitempty"`
	// MemorableThreshold is the minimum importance FindMemorableDetails accepts.
	MemorableThreshold float64 `yaml:"memorable_threshold,omitempty"`
	// GenericImportance scores text that matches no rule or keyword.
	GenericImportance float64 `yaml:"generic_importance,omitempty"`
	// MentionImportance scores facts recorded about a mentioned user.
	MentionImportance float64 `yaml:"mention_importance,omitempty"`
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		WordBudget:         300,
		ImportanceFloor:    0.5,
		DedupeWindow:       5,
		MentionedItems:     3,
		MemorableThreshold: 0.5,
		GenericImportance:  0.5,
		MentionImportance:  0.8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.WordBudget <= 0 {
		o.WordBudget = d.WordBudget
	}
	if o.ImportanceFloor <= 0 {
		o.ImportanceFloor = d.ImportanceFloor
	}
	if o.DedupeWindow <= 0 {
		o.DedupeWindow = d.DedupeWindow
	}
	if o.MentionedItems <= 0 {
		o.MentionedItems = d.MentionedItems
	}
	if o.MemorableThreshold <= 0 {
		o.MemorableThreshold = d.MemorableThreshold
	}
	if o.GenericImportance <= 0 {
		o.GenericImportance = d.GenericImportance
	}
	if o.MentionImportance <= 0 {
		o.MentionImportance = d.MentionImportance
	}
	return o
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
