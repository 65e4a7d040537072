package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/debot/message"
	"github.com/aschepis/backscratcher/debot/personality"
)

// Platform is everything the bot needs from the chat service.
type Platform interface {
	personality.Messenger

	// PostMessage posts msg to channel, inside threadTS when it is set, and
	// returns the new message's timestamp.
	PostMessage(ctx context.Context, channel, threadTS string, msg message.Message) (string, error)
	UpdateMessage(ctx context.Context, channel, ts string, msg message.Message) error
	PostEphemeral(ctx context.Context, channel, userID string, msg message.Message) error
	DeleteMessage(ctx context.Context, channel, ts string) error

	// Respond answers a slash command through its response URL.
	Respond(ctx context.Context, responseURL string, resp Response) error

	// UserName returns the user's real name, or their handle when unset.
	UserName(ctx context.Context, userID string) (string, error)

	// History returns one page of channel history, newest first.
	History(ctx context.Context, channel, cursor string, limit int) (HistoryPage, error)
}

// Response is a slash-command reply.
type Response struct {
	Message         message.Message
	Visibility      message.Visibility
	ReplaceOriginal bool
}

// HistoryPage is one page of channel history.
type HistoryPage struct {
	Messages   []HistoryMessage
	NextCursor string
}

// HistoryMessage is the part of a channel message purge looks at.
type HistoryMessage struct {
	TS    string
	BotID string
}

// ErrOperationTimeout is returned by a Platform when the service gave up on
// an operation.
var ErrOperationTimeout = errors.New("platform: operation timeout")

// RateLimitError is returned by a Platform when a call was rate limited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("platform: rate limited, retry after %s", e.RetryAfter)
}

// Command is an inbound slash command.
type Command struct {
	Name        string
	Text        string
	UserID      string
	ChannelID   string
	ResponseURL string
}

// MessageEvent is an inbound channel message.
type MessageEvent struct {
	Channel  string
	User     string
	Text     string
	TS       string
	ThreadTS string
	BotID    string
	SubType  string
}

func ephemeral(msg message.Message) Response {
	return Response{Message: msg, Visibility: message.Ephemeral}
}

func inChannel(msg message.Message) Response {
	return Response{Message: msg, Visibility: message.InChannel}
}
