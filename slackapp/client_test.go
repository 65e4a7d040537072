package slackapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

// fakeAPI serves canned Web API responses keyed by method name.
func fakeAPI(t *testing.T, handlers map[string]http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/api/")
		h, ok := handlers[method]
		if !ok {
			t.Errorf("unexpected call to %s", method)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(zerolog.Nop(), "xoxb-test", WithAPIURL(srv.URL+"/api/"), WithHTTPClient(srv.Client()))
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestPostMessage(t *testing.T) {
	var form map[string][]string
	c := fakeAPI(t, map[string]http.HandlerFunc{
		"chat.postMessage": func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			form = r.PostForm
			reply(`{"ok":true,"channel":"C1","ts":"1700000000.000200"}`)(w, r)
		},
	})

	ts, err := c.PostMessage(context.Background(), "C1", "1700000000.000100", message.Text("*hi*"))
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}
	if ts != "1700000000.000200" {
		t.Fatalf("ts = %q", ts)
	}
	if got := form["thread_ts"]; len(got) != 1 || got[0] != "1700000000.000100" {
		t.Fatalf("thread_ts = %v", got)
	}
	if got := form["blocks"]; len(got) != 1 || !strings.Contains(got[0], `"mrkdwn"`) {
		t.Fatalf("blocks = %v", got)
	}
}

func TestHistory(t *testing.T) {
	c := fakeAPI(t, map[string]http.HandlerFunc{
		"conversations.history": reply(`{
			"ok": true,
			"messages": [{"type":"message","ts":"2.0","bot_id":"B1"},{"type":"message","ts":"1.0","user":"U1"}],
			"response_metadata": {"next_cursor": "abc"}
		}`),
	})

	page, err := c.History(context.Background(), "C1", "", 200)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	want := []bot.HistoryMessage{{TS: "2.0", BotID: "B1"}, {TS: "1.0"}}
	if len(page.Messages) != 2 || page.Messages[0] != want[0] || page.Messages[1] != want[1] {
		t.Fatalf("messages = %+v", page.Messages)
	}
	if page.NextCursor != "abc" {
		t.Fatalf("cursor = %q", page.NextCursor)
	}
}

func TestUserName(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "real name", body: `{"ok":true,"user":{"id":"U1","name":"ada","real_name":"Ada Lovelace"}}`, want: "Ada Lovelace"},
		{name: "handle", body: `{"ok":true,"user":{"id":"U1","name":"ada"}}`, want: "ada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeAPI(t, map[string]http.HandlerFunc{"users.info": reply(tt.body)})
			got, err := c.UserName(context.Background(), "U1")
			if err != nil {
				t.Fatalf("UserName: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeleteMessageErrors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		c := fakeAPI(t, map[string]http.HandlerFunc{
			"chat.delete": func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
		})
		err := c.DeleteMessage(context.Background(), "C1", "1.0")
		var limited *bot.RateLimitError
		if !errors.As(err, &limited) {
			t.Fatalf("err = %v, want RateLimitError", err)
		}
		if limited.RetryAfter != 7*time.Second {
			t.Fatalf("retry after = %s", limited.RetryAfter)
		}
	})

	t.Run("operation timeout", func(t *testing.T) {
		c := fakeAPI(t, map[string]http.HandlerFunc{
			"chat.delete": reply(`{"ok":false,"error":"operation_timeout"}`),
		})
		err := c.DeleteMessage(context.Background(), "C1", "1.0")
		if !errors.Is(err, bot.ErrOperationTimeout) {
			t.Fatalf("err = %v, want ErrOperationTimeout", err)
		}
	})
}

func TestPostDirectMessage(t *testing.T) {
	var postedTo string
	c := fakeAPI(t, map[string]http.HandlerFunc{
		"conversations.open": reply(`{"ok":true,"channel":{"id":"D42"}}`),
		"chat.postMessage": func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			postedTo = r.PostForm.Get("channel")
			reply(`{"ok":true,"channel":"D42","ts":"1.0"}`)(w, r)
		},
	})
	if err := c.PostDirectMessage(context.Background(), "U1", message.Plain("watch it")); err != nil {
		t.Fatalf("PostDirectMessage: %v", err)
	}
	if postedTo != "D42" {
		t.Fatalf("posted to %q", postedTo)
	}
}

func TestRespond(t *testing.T) {
	var got map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	c := NewClient(zerolog.Nop(), "xoxb-test", WithHTTPClient(hook.Client()))
	err := c.Respond(context.Background(), hook.URL, bot.Response{
		Message:         message.Text("done"),
		Visibility:      message.InChannel,
		ReplaceOriginal: true,
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got["response_type"] != "in_channel" || got["replace_original"] != true || got["text"] != "done" {
		t.Fatalf("webhook body = %v", got)
	}
	if blocks, ok := got["blocks"].([]any); !ok || len(blocks) != 1 {
		t.Fatalf("blocks = %v", got["blocks"])
	}
}

func TestBlocks(t *testing.T) {
	msg := message.Message{
		Text: "alert",
		Blocks: []message.Block{
			message.Header("Printer"),
			message.Fields("*Printer:*\nEnder", "*Progress:*\n42%"),
			{Kind: message.KindSection, Text: "look", Button: &message.Button{Text: "View", URL: "https://example.com", ActionID: "check"}},
			message.Image("https://example.com/snap.jpg", "Snapshot", "snap"),
			message.Context("footer"),
			{Kind: message.KindSection},
			{Kind: "unknown", Text: "x"},
		},
	}

	blocks := Blocks(msg)
	if len(blocks) != 5 {
		t.Fatalf("got %d blocks, want 5", len(blocks))
	}
	wantTypes := []slack.MessageBlockType{slack.MBTHeader, slack.MBTSection, slack.MBTSection, slack.MBTImage, slack.MBTContext}
	for i, b := range blocks {
		if b.BlockType() != wantTypes[i] {
			t.Errorf("block %d type = %s, want %s", i, b.BlockType(), wantTypes[i])
		}
	}

	fields := blocks[1].(*slack.SectionBlock)
	if fields.Text != nil || len(fields.Fields) != 2 {
		t.Fatalf("fields block = %+v", fields)
	}
	button := blocks[2].(*slack.SectionBlock)
	if button.Accessory == nil || button.Accessory.ButtonElement == nil || button.Accessory.ButtonElement.URL != "https://example.com" {
		t.Fatalf("button accessory = %+v", button.Accessory)
	}
}
