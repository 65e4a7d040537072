package personality

import (
	"time"
)

const (
	// StateKey is the key-value store key of the single global personality record.
	StateKey = "debot_personality"

	maxExperiences    = 5
	maxLastMessages   = 5
	maxMemorableEvent = 10
)

// Traits are the tunable dimensions of DeBot's personality, each in [0,1].
type Traits struct {
	Friendliness float64 `json:"friendliness"`
	Sassiness    float64 `json:"sassiness"`
	Patience     float64 `json:"patience"`
	Humor        float64 `json:"humor"`
	Formality    float64 `json:"formality"`
	Vengefulness float64 `json:"vengefulness"`
}

// DefaultTraits returns the starting personality.
func DefaultTraits() Traits {
	return Traits{
		Friendliness: 0.8,
		Sassiness:    0.2,
		Patience:     0.8,
		Humor:        0.7,
		Formality:    0.5,
		Vengefulness: 0.1,
	}
}

// ExperienceKind is the tone of one interaction as DeBot felt it.
type ExperienceKind string

const (
	ExperienceNegative ExperienceKind = "negative"
	ExperiencePositive ExperienceKind = "positive"
	ExperienceNeutral  ExperienceKind = "neutral"
)

// Experience is one entry in the recent-experience window.
type Experience struct {
	Kind      ExperienceKind `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"userId,omitempty"`
}

// MemorableEvent is a notable thing about a user, surfaced in prompts.
type MemorableEvent struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentMessage is one of the last messages a user sent DeBot.
type RecentMessage struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Channel   string    `json:"channel,omitempty"`
}

// InteractionRecord is DeBot's relationship history with one user.
type InteractionRecord struct {
	InsultCount      int              `json:"insultCount"`
	LastInsult       *time.Time       `json:"lastInsult"`
	ComplimentCount  int              `json:"complimentCount"`
	LastCompliment   *time.Time       `json:"lastCompliment"`
	WarningsReceived int              `json:"warningsReceived"`
	LastWarning      *time.Time       `json:"lastWarning"`
	MemorableEvents  []MemorableEvent `json:"memorableEvents"`
	LastMessages     []RecentMessage  `json:"lastMessages"`
}

func newInteractionRecord() *InteractionRecord {
	return &InteractionRecord{
		MemorableEvents: []MemorableEvent{},
		LastMessages:    []RecentMessage{},
	}
}

func (r *InteractionRecord) clone() InteractionRecord {
	out := *r
	out.MemorableEvents = append([]MemorableEvent{}, r.MemorableEvents...)
	out.LastMessages = append([]RecentMessage{}, r.LastMessages...)
	return out
}

// State is the global personality record.
type State struct {
	Traits            Traits                        `json:"traits"`
	UserInteractions  map[string]*InteractionRecord `json:"userInteractions"`
	RecentExperiences []Experience                  `json:"recentExperiences"`
	LastUpdate        time.Time                     `json:"lastUpdate"`
}

// DefaultState returns a fresh personality stamped at now.
func DefaultState(now time.Time) State {
	return State{
		Traits:            DefaultTraits(),
		UserInteractions:  map[string]*InteractionRecord{},
		RecentExperiences: []Experience{},
		LastUpdate:        now,
	}
}

// user returns the record for userID, creating it when absent.
func (s *State) user(userID string) *InteractionRecord {
	if s.UserInteractions == nil {
		s.UserInteractions = map[string]*InteractionRecord{}
	}
	rec, ok := s.UserInteractions[userID]
	if !ok || rec == nil {
		rec = newInteractionRecord()
		s.UserInteractions[userID] = rec
	}
	return rec
}

// Mood is the kind of the most recent experience, neutral when there is none.
func (s *State) Mood() ExperienceKind {
	if len(s.RecentExperiences) == 0 {
		return ExperienceNeutral
	}
	return s.RecentExperiences[0].Kind
}

// Interaction returns a copy of the record for userID and whether it exists.
func (s *State) Interaction(userID string) (InteractionRecord, bool) {
	rec, ok := s.UserInteractions[userID]
	if !ok || rec == nil {
		return *newInteractionRecord(), false
	}
	return rec.clone(), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func stamp(t time.Time) *time.Time {
	return &t
}
