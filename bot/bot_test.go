package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/debot/assist"
	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/rs/zerolog"
)

const (
	botID   = "UBOT"
	adminID = "UADMIN"
)

type posted struct {
	channel, thread string
	msg             message.Message
}

type fakePlatform struct {
	mu sync.Mutex

	posts      []posted
	updates    []posted
	ephemerals []posted
	responses  []Response
	deleted    []string
	dms        []string

	names      map[string]string
	pages      []HistoryPage
	historyErr error
	// deleteErrs is consumed one error per DeleteMessage call.
	deleteErrs []error
	postErr    error
}

func (p *fakePlatform) PostDirectMessage(_ context.Context, userID string, _ message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms = append(p.dms, userID)
	return nil
}

func (p *fakePlatform) PostMessage(_ context.Context, channel, threadTS string, msg message.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.postErr != nil {
		return "", p.postErr
	}
	p.posts = append(p.posts, posted{channel: channel, thread: threadTS, msg: msg})
	return "100.000" + string(rune('0'+len(p.posts))), nil
}

func (p *fakePlatform) UpdateMessage(_ context.Context, channel, ts string, msg message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, posted{channel: channel, thread: ts, msg: msg})
	return nil
}

func (p *fakePlatform) PostEphemeral(_ context.Context, channel, userID string, msg message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ephemerals = append(p.ephemerals, posted{channel: channel, thread: userID, msg: msg})
	return nil
}

func (p *fakePlatform) DeleteMessage(_ context.Context, _ string, ts string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.deleteErrs) > 0 {
		err := p.deleteErrs[0]
		p.deleteErrs = p.deleteErrs[1:]
		if err != nil {
			return err
		}
	}
	p.deleted = append(p.deleted, ts)
	return nil
}

func (p *fakePlatform) Respond(_ context.Context, _ string, resp Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	return nil
}

func (p *fakePlatform) UserName(_ context.Context, userID string) (string, error) {
	if name, ok := p.names[userID]; ok {
		return name, nil
	}
	return "", errors.New("user_not_found")
}

func (p *fakePlatform) History(_ context.Context, _, cursor string, _ int) (HistoryPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.historyErr != nil {
		return HistoryPage{}, p.historyErr
	}
	if len(p.pages) == 0 {
		return HistoryPage{}, nil
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, nil
}

func (p *fakePlatform) responseTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.responses {
		out = append(out, r.Message.Text)
	}
	return out
}

func (p *fakePlatform) lastResponse(t *testing.T) Response {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.responses) == 0 {
		t.Fatalf("no responses sent")
	}
	return p.responses[len(p.responses)-1]
}

type stubChat struct {
	reply string
	reqs  []chat.Request
}

func (c *stubChat) Chat(_ context.Context, req chat.Request, _ personality.Messenger) string {
	c.reqs = append(c.reqs, req)
	return c.reply
}

type stored struct {
	userID, text string
	importance   float64
}

type stubMemory struct {
	detail   *memory.Detail
	stores   []stored
	mentions []stored
}

func (m *stubMemory) FindMemorableDetails(string) (memory.Detail, bool) {
	if m.detail == nil {
		return memory.Detail{}, false
	}
	return *m.detail, true
}

func (m *stubMemory) Store(_ context.Context, userID, text, _ string, importance float64) error {
	m.stores = append(m.stores, stored{userID: userID, text: text, importance: importance})
	return nil
}

func (m *stubMemory) StoreMention(_ context.Context, mentionedID, text, observerID string) error {
	m.mentions = append(m.mentions, stored{userID: mentionedID, text: text + "|" + observerID})
	return nil
}

type stubResetter struct {
	err   error
	calls int
}

func (r *stubResetter) Reset(context.Context) error {
	r.calls++
	return r.err
}

type stubCommits struct {
	out string
	err error
}

func (c *stubCommits) Format(context.Context, string) (string, error) { return c.out, c.err }

type stubErrors struct {
	got []string
}

func (e *stubErrors) Analyze(_ context.Context, errText string) assist.Analysis {
	e.got = append(e.got, errText)
	return assist.Analysis{Explanation: "it broke", Solution: "fix it"}
}

type harness struct {
	bot      *Bot
	platform *fakePlatform
	chat     *stubChat
	memory   *stubMemory
	reset    *stubResetter
	commits  *stubCommits
	errors   *stubErrors
	settings *kv.MemoryStore
	sleeps   []time.Duration
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		platform: &fakePlatform{names: map[string]string{"U1": "Ada"}},
		chat:     &stubChat{reply: "Here is a thoughtful answer about many things"},
		memory:   &stubMemory{},
		reset:    &stubResetter{},
		commits:  &stubCommits{},
		errors:   &stubErrors{},
		settings: kv.NewMemoryStore(),
	}
	if opts.BotUserID == "" {
		opts.BotUserID = botID
	}
	if opts.Admins == nil {
		opts.Admins = []string{adminID}
	}
	b, err := New(zerolog.Nop(), h.platform, Services{
		Chat:        h.chat,
		Memory:      h.memory,
		Personality: h.reset,
		Commits:     h.commits,
		Errors:      h.errors,
		Settings:    h.settings,
	}, opts,
		WithClock(func() time.Time { return testNow }),
		WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.bot = b
	return h
}

func TestNewAppliesDefaults(t *testing.T) {
	h := newHarness(t, Options{})
	opts := h.bot.opts
	if opts.BotName != "debot" || opts.MaxMentions != 3 || opts.DedupeCapacity != 1000 {
		t.Fatalf("defaults not applied: %+v", opts)
	}
	if opts.Purge.ChunkSize != 5 || opts.Purge.Window != 24*time.Hour || opts.Purge.MaxRetries != 3 {
		t.Fatalf("purge defaults not applied: %+v", opts.Purge)
	}
}

func TestPrivilegedCommandsRequireAdmin(t *testing.T) {
	for _, name := range []string{"/purgeee", "/dstartm", "/dreset"} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.bot.HandleCommand(context.Background(), Command{Name: name, Text: "on", UserID: "U1"})

			resp := h.platform.lastResponse(t)
			if resp.Message.Text != textUnauthorized {
				t.Fatalf("got %q, want unauthorized", resp.Message.Text)
			}
			if resp.Visibility != message.Ephemeral {
				t.Fatalf("unauthorized reply should be ephemeral")
			}
			if h.reset.calls != 0 || len(h.platform.deleted) != 0 {
				t.Fatalf("privileged action ran for non-admin")
			}
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, Options{})
	h.bot.HandleCommand(context.Background(), Command{Name: "/nope", UserID: "U1"})
	if got := h.platform.lastResponse(t).Message.Text; got != "Sorry, I don't know that command." {
		t.Fatalf("got %q", got)
	}
}

func TestStartupToggle(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		stored  bool
		written bool
	}{
		{arg: "on", want: "✅ Startup message has been turned on", stored: true, written: true},
		{arg: " OFF ", want: "✅ Startup message has been turned off", stored: false, written: true},
		{arg: "maybe", want: "Please use 'on' or 'off' as the argument. Example: `/dstartm on`"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			h := newHarness(t, Options{})
			ctx := context.Background()
			h.bot.HandleCommand(ctx, Command{Name: "/dstartm", Text: tt.arg, UserID: adminID})

			if got := h.platform.lastResponse(t).Message.Text; got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			var enabled bool
			found, err := kv.GetJSON(ctx, h.settings, StartupMessageKey, &enabled)
			if err != nil {
				t.Fatalf("GetJSON: %v", err)
			}
			if found != tt.written {
				t.Fatalf("found = %v, want %v", found, tt.written)
			}
			if found && enabled != tt.stored {
				t.Fatalf("enabled = %v, want %v", enabled, tt.stored)
			}
		})
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, Options{})
	h.bot.HandleCommand(context.Background(), Command{Name: "/dreset", UserID: adminID})
	if h.reset.calls != 1 {
		t.Fatalf("Reset called %d times", h.reset.calls)
	}
	if got := h.platform.lastResponse(t).Message.Text; !strings.HasPrefix(got, "✨ My personality has been reset") {
		t.Fatalf("got %q", got)
	}

	h.reset.err = errors.New("disk full")
	h.bot.HandleCommand(context.Background(), Command{Name: "/dreset", UserID: adminID})
	if got := h.platform.lastResponse(t).Message.Text; !strings.HasPrefix(got, "Oops!") {
		t.Fatalf("got %q", got)
	}
}

func TestCommitCommand(t *testing.T) {
	tests := []struct {
		name string
		text string
		out  string
		err  error
		want string
	}{
		{name: "empty", text: "  ", want: "Please provide a commit message to format."},
		{
			name: "formatted",
			text: "fixed login",
			out:  "fix(auth): resolve login issue",
			want: "*Original:*\n`fixed login`\n\n*Formatted:*\n`fix(auth): resolve login issue`",
		},
		{name: "timeout", text: "x", err: errors.Join(assist.ErrTimedOut, context.DeadlineExceeded), want: "The request timed out. Please try again."},
		{name: "failure", text: "x", err: errors.New("all providers failed"), want: "Unable to format commit message at the moment."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.commits.out, h.commits.err = tt.out, tt.err
			h.bot.HandleCommand(context.Background(), Command{Name: "/commiti", Text: tt.text, UserID: "U1"})

			resp := h.platform.lastResponse(t)
			if resp.Message.Text != tt.want {
				t.Fatalf("got %q, want %q", resp.Message.Text, tt.want)
			}
		})
	}
}

func TestAnalyzeCommand(t *testing.T) {
	h := newHarness(t, Options{})
	h.bot.HandleCommand(context.Background(), Command{Name: "/ellab", Text: "TypeError: x", UserID: "U1"})

	texts := h.platform.responseTexts()
	if len(texts) != 2 || texts[0] != textAnalyzing {
		t.Fatalf("responses = %q", texts)
	}
	resp := h.platform.lastResponse(t)
	if !resp.ReplaceOriginal || resp.Visibility != message.Ephemeral {
		t.Fatalf("analysis should replace the ephemeral ack: %+v", resp)
	}
	if len(resp.Message.Blocks) != 3 || resp.Message.Blocks[2].Text != "💡 *Suggested Fix:*\nfix it" {
		t.Fatalf("blocks = %+v", resp.Message.Blocks)
	}
	if len(h.errors.got) != 1 || h.errors.got[0] != "TypeError: x" {
		t.Fatalf("analyzed %q", h.errors.got)
	}
}

func TestChatCommand(t *testing.T) {
	h := newHarness(t, Options{})
	h.memory.detail = &memory.Detail{Content: "my name is Ada", Importance: 0.9, Rule: "name"}

	h.bot.HandleCommand(context.Background(), Command{
		Name: "/dai", Text: "my name is Ada, ask <@U2> about it", UserID: "U1", ChannelID: "C1",
	})

	texts := h.platform.responseTexts()
	if len(texts) != 2 || texts[0] != textThinking || texts[1] != h.chat.reply {
		t.Fatalf("responses = %q", texts)
	}
	if !h.platform.lastResponse(t).ReplaceOriginal {
		t.Fatalf("reply should replace the thinking message")
	}
	if len(h.chat.reqs) != 1 || h.chat.reqs[0].UserName != "Ada" || h.chat.reqs[0].Channel != "C1" {
		t.Fatalf("chat requests = %+v", h.chat.reqs)
	}

	if len(h.memory.stores) != 2 {
		t.Fatalf("stores = %+v", h.memory.stores)
	}
	if s := h.memory.stores[0]; s.text != "my name is Ada" || s.importance != 0.9 {
		t.Fatalf("detail store = %+v", s)
	}
	if s := h.memory.stores[1]; !strings.HasPrefix(s.text, `Bot responded to "my name is Ada, ask <@U2> abou..."`) || s.importance != 0.6 {
		t.Fatalf("summary store = %+v", s)
	}
	if len(h.memory.mentions) != 1 || h.memory.mentions[0].text != " about it|U1" {
		t.Fatalf("mentions = %+v", h.memory.mentions)
	}
}

func TestChatCommandEmptyGreets(t *testing.T) {
	h := newHarness(t, Options{})
	h.bot.HandleCommand(context.Background(), Command{Name: "/dai", UserID: "U1"})

	resp := h.platform.lastResponse(t)
	if resp.Message.Text != textGreeting || len(resp.Message.Blocks) != 2 || resp.Message.Blocks[0].Text != "> Hey!" {
		t.Fatalf("got %+v", resp.Message)
	}
	if len(h.chat.reqs) != 0 {
		t.Fatalf("greeting should not call chat")
	}
}

func TestAnnounce(t *testing.T) {
	ctx := context.Background()

	t.Run("initialises and posts", func(t *testing.T) {
		h := newHarness(t, Options{AnnounceChannel: "C-general"})
		if err := h.bot.Announce(ctx); err != nil {
			t.Fatalf("Announce: %v", err)
		}
		if len(h.platform.posts) != 1 || h.platform.posts[0].channel != "C-general" {
			t.Fatalf("posts = %+v", h.platform.posts)
		}
		var enabled bool
		found, _ := kv.GetJSON(ctx, h.settings, StartupMessageKey, &enabled)
		if !found || !enabled {
			t.Fatalf("flag not initialised: found=%v enabled=%v", found, enabled)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, Options{AnnounceChannel: "C-general"})
		if err := kv.SetJSON(ctx, h.settings, StartupMessageKey, false); err != nil {
			t.Fatalf("SetJSON: %v", err)
		}
		if err := h.bot.Announce(ctx); err != nil {
			t.Fatalf("Announce: %v", err)
		}
		if len(h.platform.posts) != 0 {
			t.Fatalf("posted while disabled")
		}
	})

	t.Run("no channel", func(t *testing.T) {
		h := newHarness(t, Options{})
		if err := h.bot.Announce(ctx); err != nil {
			t.Fatalf("Announce: %v", err)
		}
		if len(h.platform.posts) != 0 {
			t.Fatalf("posted without a channel")
		}
	})
}

func TestTopicOf(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"can you help me", "getting help"},
		{"my Python script", "Python"},
		{"deploying to the cloud", "deployment"},
		{"the weather", DefaultTopic},
		// "github" hits the version control row, but "help" comes first.
		{"help with github", "getting help"},
	}
	for _, tt := range tests {
		if got := TopicOf(tt.text); got != tt.want {
			t.Errorf("TopicOf(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestPrefix(t *testing.T) {
	if got := prefix("héllo", 2); got != "hé" {
		t.Fatalf("prefix = %q", got)
	}
	if got := prefix("hi", 5); got != "hi" {
		t.Fatalf("prefix = %q", got)
	}
}
