package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/migrations"
	"github.com/rs/zerolog"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := migrations.Run(db, zerolog.Nop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func newTestLedger(t *testing.T, opts Options) *Ledger {
	t.Helper()
	l := NewLedger(kv.NewMemoryStore(), opts, zerolog.Nop())
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return fixed })
	return l
}

func itemTexts(rec UserRecord) []string {
	out := make([]string, len(rec.Items))
	for i, it := range rec.Items {
		out[i] = it.Text
	}
	return out
}

func TestStore_RejectsEmptyText(t *testing.T) {
	l := newTestLedger(t, Options{})
	if err := l.Store(context.Background(), "U1", "   ", "", 0.9); err != ErrEmptyText {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestStore_PrependsAndSetsDisplayName(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(kv.NewSQLiteStore(setupTestDB(t), zerolog.Nop()), Options{}, zerolog.Nop())

	if err := l.Store(ctx, "U1", "likes Go", "Alice", 0.7); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := l.Store(ctx, "U1", "works at Acme", "", 0.8); err != nil {
		t.Fatalf("store: %v", err)
	}

	rec, err := l.Record(ctx, "U1")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.DisplayName != "Alice" {
		t.Errorf("display name = %q, want Alice", rec.DisplayName)
	}
	got := itemTexts(rec)
	if len(got) != 2 || got[0] != "works at Acme" || got[1] != "likes Go" {
		t.Fatalf("items = %v, want most recent first", got)
	}
	if rec.Items[0].Importance != 0.8 {
		t.Errorf("importance = %v, want 0.8", rec.Items[0].Importance)
	}
}

func TestStore_DuplicateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})

	for _, text := range []string{"I like Go", "i like go", "I LIKE GO"} {
		if err := l.Store(ctx, "U1", text, "", 0.7); err != nil {
			t.Fatalf("store %q: %v", text, err)
		}
	}
	rec, _ := l.Record(ctx, "U1")
	if len(rec.Items) != 1 {
		t.Fatalf("items = %v, want one", itemTexts(rec))
	}
}

func TestStore_DuplicateOutsideWindowIsStored(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{DedupeWindow: 2})

	for _, text := range []string{"first fact", "second fact", "third fact", "first fact"} {
		if err := l.Store(ctx, "U1", text, "", 0.7); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	rec, _ := l.Record(ctx, "U1")
	if len(rec.Items) != 4 {
		t.Fatalf("items = %v, want 4", itemTexts(rec))
	}
}

func TestStore_PrunesByAdjustedImportance(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{WordBudget: 10})

	steps := []struct {
		text       string
		importance float64
	}{
		{"alpha beta gamma", 0.9},
		{"delta epsilon zeta", 0.4},
		{"eta theta iota", 0.6},
		{"kappa lambda mu", 0.7},
	}
	for _, s := range steps[:3] {
		if err := l.Store(ctx, "U1", s.text, "", s.importance); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	rec, _ := l.Record(ctx, "U1")
	if len(rec.Items) != 3 {
		t.Fatalf("under budget nothing is pruned, got %v", itemTexts(rec))
	}

	if err := l.Store(ctx, "U1", steps[3].text, "", steps[3].importance); err != nil {
		t.Fatalf("store: %v", err)
	}
	rec, _ = l.Record(ctx, "U1")
	want := []string{"alpha beta gamma", "kappa lambda mu", "eta theta iota"}
	got := itemTexts(rec)
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("items = %v, want %v", got, want)
	}
	for _, it := range rec.Items {
		if it.AdjustedImportance == nil {
			t.Fatalf("item %q missing adjusted importance", it.Text)
		}
	}
}

func TestStore_WordBudgetHoldsUnderRandomLoad(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{WordBudget: 60})
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		words := make([]string, 1+rng.IntN(15))
		for j := range words {
			words[j] = fmt.Sprintf("w%d_%d", i, j)
		}
		if err := l.Store(ctx, "U1", strings.Join(words, " "), "", rng.Float64()); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
		rec, _ := l.Record(ctx, "U1")
		if wc := rec.WordCount(); wc > 60 {
			t.Fatalf("after store %d word count = %d, exceeds budget", i, wc)
		}
	}
}

func TestStore_ConcurrentWritesAreNotLost(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := l.Store(ctx, "U1", fmt.Sprintf("fact number %d", i), "", 0.7); err != nil {
				t.Errorf("store %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	rec, _ := l.Record(ctx, "U1")
	if len(rec.Items) != writers {
		t.Fatalf("items = %d, want %d", len(rec.Items), writers)
	}
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})

	got, err := l.Context(ctx, "U1", nil)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if got != "" {
		t.Fatalf("empty ledger context = %q, want empty", got)
	}

	mustStore := func(user, text, name string, imp float64) {
		t.Helper()
		if err := l.Store(ctx, user, text, name, imp); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	mustStore("U1", "likes Go", "Alice", 0.7)
	mustStore("U1", "works at Acme", "", 0.8)
	mustStore("U2", "u2 low", "Bob", 0.5)
	mustStore("U2", "u2 top", "", 0.9)
	mustStore("U2", "u2 mid", "", 0.7)
	mustStore("U2", "u2 high", "", 0.8)

	got, err = l.Context(ctx, "U1", []string{"U2", "U1", "U3"})
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	want := "Previous interactions with Alice:\n- works at Acme\n- likes Go\n\n" +
		"What I know about <@U2> (Bob):\n- u2 top\n- u2 high\n- u2 mid"
	if got != want {
		t.Fatalf("context =\n%s\nwant\n%s", got, want)
	}
}

func TestContext_FallbackNames(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})
	_ = l.Store(ctx, "U1", "likes tea", "", 0.7)
	_ = l.Store(ctx, "U2", "likes coffee", "", 0.7)

	got, _ := l.Context(ctx, "U1", []string{"U2"})
	want := "Previous interactions with this user:\n- likes tea\n\n" +
		"What I know about <@U2> (mentioned user):\n- likes coffee"
	if got != want {
		t.Fatalf("context =\n%s\nwant\n%s", got, want)
	}

	got, _ = l.Context(ctx, "U9", []string{"U2"})
	if !strings.HasPrefix(got, "What I know about <@U2>") {
		t.Fatalf("unknown caller should only see mentions, got %q", got)
	}
}

func TestStoreMention(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Options{})
	_ = l.Store(ctx, "U1", "likes Go", "Alice", 0.7)
	_ = l.Store(ctx, "U2", "likes Rust", "Bob", 0.7)

	if err := l.StoreMention(ctx, "U2", "is great at debugging", "U1"); err != nil {
		t.Fatalf("store mention: %v", err)
	}
	if err := l.StoreMention(ctx, "U2", "owes me lunch", "U9"); err != nil {
		t.Fatalf("store mention: %v", err)
	}

	rec, _ := l.Record(ctx, "U2")
	if rec.DisplayName != "Bob" {
		t.Errorf("display name = %q, want Bob", rec.DisplayName)
	}
	got := itemTexts(rec)
	want := []string{
		"Mentioned by <@U9>: owes me lunch",
		"Mentioned by Alice (<@U1>): is great at debugging",
		"likes Rust",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("items = %v, want %v", got, want)
	}
	if rec.Items[0].Importance != 0.8 {
		t.Errorf("mention importance = %v, want 0.8", rec.Items[0].Importance)
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	l := NewLedger(store, Options{WordBudget: 6}, zerolog.Nop())

	over := UserRecord{UserID: "U1", Items: []Item{
		{Text: "one two three", Importance: 0.9},
		{Text: "four five six", Importance: 0.3},
		{Text: "seven eight nine", Importance: 0.8},
	}}
	under := UserRecord{UserID: "U2", Items: []Item{{Text: "short", Importance: 0.1}}}
	if err := kv.SetJSON(ctx, store, Key("U1"), over); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := kv.SetJSON(ctx, store, Key("U2"), under); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Set(ctx, "debot_personality", []byte(`{}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := l.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}

	rec, _ := l.Record(ctx, "U1")
	if got := strings.Join(itemTexts(rec), "|"); got != "one two three|seven eight nine" {
		t.Fatalf("U1 items = %s", got)
	}
	rec, _ = l.Record(ctx, "U2")
	if len(rec.Items) != 1 {
		t.Fatalf("U2 should be untouched, got %v", itemTexts(rec))
	}
}
