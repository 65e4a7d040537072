package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/aschepis/backscratcher/debot/assist"
	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
)

// StartupMessageKey stores whether Announce posts the welcome message.
const StartupMessageKey = "startupMessageEnabled"

const (
	textUnauthorized = "Sorry! Only deployor can use this command! 🔒"
	textGreeting     = "Hey there! :yay: How's it going? What's on your mind today? :giggle:"
	textThinking     = "One moment..."
	textTangled      = "Oops! :sad_pepe: My circuits got a bit tangled there! Can we try that again? :prayge:"
	textAnalyzing    = "🔍 Analyzing your error..."
)

// HandleCommand runs a slash command. Replies go through the command's
// response URL; failures to reply are logged.
func (b *Bot) HandleCommand(ctx context.Context, cmd Command) {
	log := b.eventLogger("command", cmd.UserID).With().Str("command", cmd.Name).Logger()
	log.Info().Str("channel", cmd.ChannelID).Msg("command received")

	var err error
	switch cmd.Name {
	case "/dai":
		err = b.handleChat(ctx, log, cmd)
	case "/commiti":
		err = b.handleCommit(ctx, log, cmd)
	case "/ellab":
		err = b.handleAnalyze(ctx, cmd)
	case "/purgeee":
		err = b.handlePurge(ctx, log, cmd)
	case "/dstartm":
		err = b.handleStartupToggle(ctx, log, cmd)
	case "/dreset":
		err = b.handleReset(ctx, log, cmd)
	default:
		err = b.respond(ctx, cmd, ephemeral(message.Plain("Sorry, I don't know that command.")))
	}
	if err != nil {
		log.Error().Err(err).Msg("command reply failed")
	}
}

func (b *Bot) respond(ctx context.Context, cmd Command, resp Response) error {
	return b.platform.Respond(ctx, cmd.ResponseURL, resp)
}

func (b *Bot) handleChat(ctx context.Context, log zerolog.Logger, cmd Command) error {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return b.respond(ctx, cmd, ephemeral(message.Message{
			Text:   textGreeting,
			Blocks: []message.Block{message.Section("> Hey!"), message.Section(textGreeting)},
		}))
	}

	userName := b.userName(ctx, log, cmd.UserID)
	b.remember(ctx, log, cmd.UserID, userName, text, true)

	if err := b.respond(ctx, cmd, inChannel(message.Text(textThinking))); err != nil {
		log.Error().Err(err).Msg("failed to send thinking message")
		return b.respond(ctx, cmd, ephemeral(message.Plain(textTangled)))
	}

	reply := b.services.Chat.Chat(ctx, chat.Request{
		Text:     text,
		UserID:   cmd.UserID,
		UserName: userName,
		Channel:  cmd.ChannelID,
	}, b.platform)

	final := inChannel(message.Text(reply))
	final.ReplaceOriginal = true
	if err := b.respond(ctx, cmd, final); err != nil {
		log.Error().Err(err).Msg("failed to send reply")
		return b.respond(ctx, cmd, ephemeral(message.Plain(textTangled)))
	}

	if len(reply) > 20 {
		summary := `Bot responded to "` + prefix(text, 30) + `..." with "` + prefix(reply, 30) + `..."`
		if err := b.services.Memory.Store(ctx, cmd.UserID, summary, userName, b.opts.SummaryImportance); err != nil {
			log.Warn().Err(err).Msg("failed to store conversation memory")
		}
	}
	return nil
}

func (b *Bot) handleCommit(ctx context.Context, log zerolog.Logger, cmd Command) error {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return b.respond(ctx, cmd, ephemeral(message.Plain("Please provide a commit message to format.")))
	}
	if err := b.respond(ctx, cmd, ephemeral(message.Plain("Formatting your commit message..."))); err != nil {
		return err
	}

	formatted, err := b.services.Commits.Format(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("commit formatting failed")
		reply := "Unable to format commit message at the moment."
		if errors.Is(err, assist.ErrTimedOut) {
			reply = "The request timed out. Please try again."
		}
		resp := ephemeral(message.Plain(reply))
		resp.ReplaceOriginal = true
		return b.respond(ctx, cmd, resp)
	}

	resp := inChannel(message.Text("*Original:*\n`" + text + "`\n\n*Formatted:*\n`" + formatted + "`"))
	resp.ReplaceOriginal = true
	return b.respond(ctx, cmd, resp)
}

func (b *Bot) handleAnalyze(ctx context.Context, cmd Command) error {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return b.respond(ctx, cmd, ephemeral(message.Plain(
			"Please provide an error message to analyze. Example: `/ellab TypeError: Cannot read property 'x' of undefined`")))
	}
	if err := b.respond(ctx, cmd, ephemeral(message.Plain(textAnalyzing))); err != nil {
		return err
	}

	resp := ephemeral(analysisMessage(b.services.Errors.Analyze(ctx, text)))
	resp.ReplaceOriginal = true
	return b.respond(ctx, cmd, resp)
}

func analysisMessage(a assist.Analysis) message.Message {
	return message.Message{
		Text: "🔍 Error Analysis Results",
		Blocks: []message.Block{
			message.Section("🔍 *Error Analysis Results:*"),
			message.Section(a.Explanation),
			message.Section("💡 *Suggested Fix:*\n" + a.Solution),
		},
	}
}

func (b *Bot) handleStartupToggle(ctx context.Context, log zerolog.Logger, cmd Command) error {
	if !b.isAdmin(cmd.UserID) {
		log.Warn().Msg("unauthorized command")
		return b.respond(ctx, cmd, ephemeral(message.Plain(textUnauthorized)))
	}

	arg := strings.ToLower(strings.TrimSpace(cmd.Text))
	if arg != "on" && arg != "off" {
		return b.respond(ctx, cmd, ephemeral(message.Plain("Please use 'on' or 'off' as the argument. Example: `/dstartm on`")))
	}

	if err := kv.SetJSON(ctx, b.services.Settings, StartupMessageKey, arg == "on"); err != nil {
		log.Error().Err(err).Msg("failed to save startup message setting")
		return b.respond(ctx, cmd, ephemeral(message.Plain("Sorry, there was an error saving your preference.")))
	}
	return b.respond(ctx, cmd, ephemeral(message.Plain("✅ Startup message has been turned "+arg)))
}

func (b *Bot) handleReset(ctx context.Context, log zerolog.Logger, cmd Command) error {
	if !b.isAdmin(cmd.UserID) {
		log.Warn().Msg("unauthorized command")
		return b.respond(ctx, cmd, ephemeral(message.Plain(textUnauthorized)))
	}

	if err := b.services.Personality.Reset(ctx); err != nil {
		log.Error().Err(err).Msg("failed to reset personality")
		return b.respond(ctx, cmd, ephemeral(message.Plain("Oops! Something went wrong while resetting my personality. :sad_pepe:")))
	}
	log.Info().Msg("personality reset")
	return b.respond(ctx, cmd, ephemeral(message.Plain(
		"✨ My personality has been reset to default! I'm feeling fresh and friendly again! :yay:")))
}

func (b *Bot) userName(ctx context.Context, log zerolog.Logger, userID string) string {
	name, err := b.platform.UserName(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("user lookup failed")
		return ""
	}
	return name
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
