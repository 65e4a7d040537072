// Package slackapp connects DeBot to the Slack Web API. Client satisfies
// bot.Platform and renders messages as Block Kit.
package slackapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/slack-go/slack"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	apiURL     string
}

// WithHTTPClient sets the HTTP client used for API and response URL calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = c }
}

// WithAPIURL points the client at another Web API base URL. It must end
// with a slash.
func WithAPIURL(url string) ClientOption {
	return func(cfg *clientConfig) { cfg.apiURL = url }
}

// Client is a bot.Platform backed by the Slack Web API.
type Client struct {
	api        *slack.Client
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ bot.Platform = (*Client)(nil)

// NewClient creates a Client authenticated with a bot token.
func NewClient(logger zerolog.Logger, token string, opts ...ClientOption) *Client {
	cfg := clientConfig{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&cfg)
	}

	apiOpts := []slack.Option{slack.OptionHTTPClient(cfg.httpClient)}
	if cfg.apiURL != "" {
		apiOpts = append(apiOpts, slack.OptionAPIURL(cfg.apiURL))
	}
	return &Client{
		api:        slack.New(token, apiOpts...),
		httpClient: cfg.httpClient,
		logger:     logger.With().Str("component", "slack").Logger(),
	}
}

// AuthTest returns the bot's own user ID.
func (c *Client) AuthTest(ctx context.Context) (string, error) {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth test: %w", translate(err))
	}
	return resp.UserID, nil
}

func (c *Client) PostMessage(ctx context.Context, channel, threadTS string, msg message.Message) (string, error) {
	opts := msgOptions(msg)
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("post message to %s: %w", channel, translate(err))
	}
	return ts, nil
}

func (c *Client) UpdateMessage(ctx context.Context, channel, ts string, msg message.Message) error {
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts, msgOptions(msg)...); err != nil {
		return fmt.Errorf("update message %s: %w", ts, translate(err))
	}
	return nil
}

func (c *Client) PostEphemeral(ctx context.Context, channel, userID string, msg message.Message) error {
	if _, err := c.api.PostEphemeralContext(ctx, channel, userID, msgOptions(msg)...); err != nil {
		return fmt.Errorf("post ephemeral to %s: %w", userID, translate(err))
	}
	return nil
}

// PostDirectMessage opens (or reuses) the DM channel with userID and posts
// msg there.
func (c *Client) PostDirectMessage(ctx context.Context, userID string, msg message.Message) error {
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{Users: []string{userID}})
	if err != nil {
		return fmt.Errorf("open conversation with %s: %w", userID, translate(err))
	}
	c.logger.Debug().Str("user_id", userID).Str("channel", ch.ID).Msg("sending direct message")
	_, err = c.PostMessage(ctx, ch.ID, "", msg)
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, channel, ts string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, channel, ts); err != nil {
		return fmt.Errorf("delete message %s: %w", ts, translate(err))
	}
	return nil
}

func (c *Client) Respond(ctx context.Context, responseURL string, resp bot.Response) error {
	webhook := &slack.WebhookMessage{
		Text:            resp.Message.Text,
		ResponseType:    string(resp.Visibility),
		ReplaceOriginal: resp.ReplaceOriginal,
	}
	if blocks := Blocks(resp.Message); len(blocks) > 0 {
		webhook.Blocks = &slack.Blocks{BlockSet: blocks}
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, c.httpClient, webhook); err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	return nil
}

func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("user info %s: %w", userID, translate(err))
	}
	if user.RealName != "" {
		return user.RealName, nil
	}
	return user.Name, nil
}

func (c *Client) History(ctx context.Context, channel, cursor string, limit int) (bot.HistoryPage, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Cursor:    cursor,
		Limit:     limit,
	})
	if err != nil {
		return bot.HistoryPage{}, fmt.Errorf("history of %s: %w", channel, translate(err))
	}
	return bot.HistoryPage{
		Messages: lo.Map(resp.Messages, func(m slack.Message, _ int) bot.HistoryMessage {
			return bot.HistoryMessage{TS: m.Timestamp, BotID: m.BotID}
		}),
		NextCursor: resp.ResponseMetaData.NextCursor,
	}, nil
}

// translate maps Slack errors the bot reacts to onto the bot's own types.
func translate(err error) error {
	var limited *slack.RateLimitedError
	if errors.As(err, &limited) {
		return &bot.RateLimitError{RetryAfter: limited.RetryAfter}
	}
	var resp slack.SlackErrorResponse
	if (errors.As(err, &resp) && resp.Err == "operation_timeout") || strings.Contains(err.Error(), "operation_timeout") {
		return fmt.Errorf("%w: %v", bot.ErrOperationTimeout, err)
	}
	return err
}
