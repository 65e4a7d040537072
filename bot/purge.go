package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/debot/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const rateLimitPad = time.Second

type purgeResult struct {
	deleted int
	failed  int
}

func (b *Bot) handlePurge(ctx context.Context, log zerolog.Logger, cmd Command) error {
	if !b.isAdmin(cmd.UserID) {
		log.Warn().Msg("unauthorized command")
		return b.respond(ctx, cmd, ephemeral(message.Plain(textUnauthorized)))
	}

	count := 0
	if arg := strings.TrimSpace(cmd.Text); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return b.respond(ctx, cmd, ephemeral(message.Plain(
				"Please provide a valid number of messages to delete, or leave empty to delete all messages.")))
		}
		count = n
	}

	target := ""
	if count > 0 {
		target = fmt.Sprintf(" of %d message(s)", count)
	}
	if err := b.respond(ctx, cmd, ephemeral(message.Plain("🧹 Starting cleanup"+target+", this might take a while..."))); err != nil {
		return err
	}

	history, err := b.collectHistory(ctx, cmd.ChannelID, count)
	if err != nil {
		log.Error().Err(err).Msg("failed to read channel history")
		return b.respond(ctx, cmd, ephemeral(message.Plain(
			"Oops! 😅 Something went wrong while trying to clean up the messages. The channel might be too busy, try again in a few minutes?")))
	}
	if len(history) == 0 {
		return b.respond(ctx, cmd, ephemeral(message.Plain("No messages found to delete! 🤷‍♂️")))
	}

	deletable := b.deletable(history)
	if len(deletable) == 0 {
		return b.respond(ctx, cmd, ephemeral(message.Plain("⚠️ I couldn't find any recent messages from me to delete!")))
	}
	if count > 0 && len(deletable) > count {
		deletable = deletable[:count]
	}

	res := b.purge(ctx, log, cmd, deletable, count)
	log.Info().Int("deleted", res.deleted).Int("failed", res.failed).Msg("purge finished")
	return b.respond(ctx, cmd, ephemeral(message.Plain(purgeSummary(res, count))))
}

// collectHistory pages through the channel until it runs out, reaches the
// configured maximum, or has twice the requested count.
func (b *Bot) collectHistory(ctx context.Context, channel string, count int) ([]HistoryMessage, error) {
	var (
		all    []HistoryMessage
		cursor string
	)
	for {
		page, err := b.platform.History(ctx, channel, cursor, b.opts.Purge.PageSize)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		if len(page.Messages) == 0 {
			return all, nil
		}
		all = append(all, page.Messages...)
		cursor = page.NextCursor

		if len(all) >= b.opts.Purge.MaxMessages || (count > 0 && len(all) >= count*2) || cursor == "" {
			return all, nil
		}
		if err := b.sleep(ctx, b.opts.Purge.PageDelay); err != nil {
			return all, nil
		}
	}
}

// deletable keeps the bot's own messages from within the purge window.
func (b *Bot) deletable(history []HistoryMessage) []HistoryMessage {
	now := b.now()
	var out []HistoryMessage
	for _, m := range history {
		if m.BotID == "" {
			continue
		}
		sec, err := strconv.ParseFloat(m.TS, 64)
		if err != nil {
			continue
		}
		posted := time.Unix(0, int64(sec*float64(time.Second)))
		if now.Sub(posted) < b.opts.Purge.Window {
			out = append(out, m)
		}
	}
	return out
}

func (b *Bot) purge(ctx context.Context, log zerolog.Logger, cmd Command, msgs []HistoryMessage, count int) purgeResult {
	var res purgeResult
	size := b.opts.Purge.ChunkSize

	for i := 0; i < len(msgs); i += size {
		end := min(i+size, len(msgs))

		if i%b.opts.Purge.ProgressEvery == 0 || end >= len(msgs) {
			if err := b.respond(ctx, cmd, ephemeral(message.Plain(purgeProgress(res.deleted, count)))); err != nil {
				log.Warn().Err(err).Msg("failed to report purge progress")
			}
		}

		for _, m := range msgs[i:end] {
			if res.deleted > 0 {
				if err := b.sleep(ctx, b.opts.Purge.DeleteDelay); err != nil {
					return res
				}
			}
			if err := b.deleteMessage(ctx, cmd.ChannelID, m.TS); err != nil {
				log.Warn().Err(err).Str("ts", m.TS).Msg("failed to delete message")
				res.failed++
				continue
			}
			res.deleted++
		}

		if end < len(msgs) {
			if err := b.sleep(ctx, b.opts.Purge.ChunkDelay); err != nil {
				return res
			}
		}
	}
	return res
}

// deleteMessage deletes one message, waiting out rate limits. A service
// timeout earns a longer pause and counts as a failure.
func (b *Bot) deleteMessage(ctx context.Context, channel, ts string) error {
	hinted := &retryAfterBackOff{BackOff: backoff.NewExponentialBackOff()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hinted, b.opts.Purge.MaxRetries), ctx)

	for {
		err := b.platform.DeleteMessage(ctx, channel, ts)
		if err == nil {
			return nil
		}

		var rateLimited *RateLimitError
		switch {
		case errors.As(err, &rateLimited):
			hinted.hint = rateLimited.RetryAfter + rateLimitPad
		case errors.Is(err, ErrOperationTimeout):
			_ = b.sleep(ctx, b.opts.Purge.TimeoutPause)
			return err
		default:
			return err
		}

		next := policy.NextBackOff()
		if next == backoff.Stop {
			return err
		}
		if serr := b.sleep(ctx, next); serr != nil {
			return serr
		}
	}
}

// retryAfterBackOff waits at least as long as the service asked for.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (r *retryAfterBackOff) NextBackOff() time.Duration {
	next := r.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if r.hint > next {
		next = r.hint
	}
	r.hint = 0
	return next
}

func purgeProgress(deleted, count int) string {
	s := fmt.Sprintf("🧹 Progress: Deleted %d %s so far...", deleted, plural(deleted, "message"))
	if count > 0 {
		s += fmt.Sprintf(" (Target: %d)", count)
	}
	return s
}

func purgeSummary(res purgeResult, count int) string {
	s := fmt.Sprintf("🧹 Cleanup complete!\n• Deleted: %d %s", res.deleted, plural(res.deleted, "message"))
	if res.failed > 0 {
		s += fmt.Sprintf("\n• Failed: %d %s", res.failed, plural(res.failed, "message"))
	}
	if count > 0 {
		s += fmt.Sprintf("\n• Requested: %d %s", count, plural(count, "message"))
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
