package bot

import (
	"context"
	"regexp"
	"strings"

	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/kv"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
)

const ellabPrefix = "ELLAB:"

var anyMention = regexp.MustCompile(`<@[A-Z0-9]+>`)

// HandleMessage reacts to a channel message: ELLAB error reports, and
// messages that mention DeBot by ID or by name.
func (b *Bot) HandleMessage(ctx context.Context, ev MessageEvent) {
	if ev.BotID != "" || ev.SubType != "" || ev.Text == "" {
		return
	}

	if strings.HasPrefix(ev.Text, ellabPrefix) {
		if b.firstSighting(ev) {
			b.handleErrorReport(ctx, ev)
		}
		return
	}

	if ev.ThreadTS != "" && !b.directlyMentioned(ev.Text) {
		return
	}
	if !b.directlyMentioned(ev.Text) && !strings.Contains(strings.ToLower(ev.Text), strings.ToLower(b.opts.BotName)) {
		return
	}
	if !b.firstSighting(ev) {
		b.logger.Debug().Str("ts", ev.TS).Str("channel", ev.Channel).Msg("already processed message")
		return
	}

	log := b.eventLogger("message", ev.User).With().Str("channel", ev.Channel).Str("ts", ev.TS).Logger()
	if err := b.reply(ctx, log, ev); err != nil {
		log.Error().Err(err).Msg("failed to handle message")
		if _, perr := b.platform.PostMessage(ctx, ev.Channel, ev.ThreadTS, message.Plain(textTangled)); perr != nil {
			log.Error().Err(perr).Msg("failed to send error message")
		}
	}
}

func (b *Bot) reply(ctx context.Context, log zerolog.Logger, ev MessageEvent) error {
	text := b.stripBotReferences(ev.Text)
	if text == "" {
		_, err := b.platform.PostMessage(ctx, ev.Channel, ev.ThreadTS, message.Plain(textGreeting))
		return err
	}

	userName := b.userName(ctx, log, ev.User)
	mentionsOK := len(anyMention.FindAllString(ev.Text, -1)) <= b.opts.MaxMentions
	if !mentionsOK {
		log.Warn().Msg("too many mentions, ignoring them")
	}
	b.remember(ctx, log, ev.User, userName, text, mentionsOK)

	ts, err := b.platform.PostMessage(ctx, ev.Channel, ev.ThreadTS, message.Plain(textThinking))
	if err != nil {
		return err
	}

	reply := b.services.Chat.Chat(ctx, chat.Request{
		Text:     text,
		UserID:   ev.User,
		UserName: userName,
		Channel:  ev.Channel,
	}, b.platform)

	if err := b.platform.UpdateMessage(ctx, ev.Channel, ts, message.Plain(reply)); err != nil {
		return err
	}

	if len(strings.Fields(reply)) > 5 && len(reply) > 20 {
		asked := text
		if len([]rune(asked)) > 30 {
			asked = prefix(asked, 30) + "..."
		}
		summary := `User asked: "` + asked + `" → Bot answered about ` + TopicOf(text)
		if err := b.services.Memory.Store(ctx, ev.User, summary, userName, b.opts.SummaryImportance); err != nil {
			log.Warn().Err(err).Msg("failed to store conversation memory")
		}
	}
	log.Info().Msg("replied")
	return nil
}

func (b *Bot) handleErrorReport(ctx context.Context, ev MessageEvent) {
	log := b.eventLogger("ellab", ev.User).With().Str("channel", ev.Channel).Logger()
	errText := strings.TrimSpace(strings.Replace(ev.Text, ellabPrefix, "", 1))

	analysis := b.services.Errors.Analyze(ctx, errText)
	if _, err := b.platform.PostMessage(ctx, ev.Channel, ev.TS, message.Plain(textAnalyzing)); err != nil {
		log.Warn().Err(err).Msg("failed to acknowledge error report")
	}
	if err := b.platform.PostEphemeral(ctx, ev.Channel, ev.User, analysisMessage(analysis)); err != nil {
		log.Error().Err(err).Msg("failed to send analysis")
		_ = b.platform.PostEphemeral(ctx, ev.Channel, ev.User, message.Plain(
			"Whoopsie! 🤔 Even a multipurpose bot like me gets confused sometimes! Can you try explaining that error differently?"))
	}
}

// firstSighting records ev and reports whether it had not been seen before.
func (b *Bot) firstSighting(ev MessageEvent) bool {
	seen, _ := b.processed.ContainsOrAdd(ev.TS+"-"+ev.Channel, struct{}{})
	return !seen
}

func (b *Bot) directlyMentioned(text string) bool {
	if b.opts.BotUserID == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower("<@"+b.opts.BotUserID+">"))
}

func (b *Bot) stripBotReferences(text string) string {
	if b.mentionPattern != nil {
		text = b.mentionPattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(b.namePattern.ReplaceAllString(text, ""))
}

// remember stores what is worth keeping from text, and, when withMentions
// is set, what it says about other users.
func (b *Bot) remember(ctx context.Context, log zerolog.Logger, userID, userName, text string, withMentions bool) {
	if detail, ok := b.services.Memory.FindMemorableDetails(text); ok {
		if err := b.services.Memory.Store(ctx, userID, detail.Content, userName, detail.Importance); err != nil {
			log.Warn().Err(err).Msg("failed to store memorable detail")
		} else {
			log.Debug().Str("rule", detail.Rule).Msg("stored memorable detail")
		}
	}

	if !withMentions {
		return
	}
	for _, mentioned := range memory.ExtractMentionedUsers(text) {
		if mentioned == b.opts.BotUserID || mentioned == userID {
			continue
		}
		if err := b.services.Memory.StoreMention(ctx, mentioned, mentionContext(text, mentioned), userID); err != nil {
			log.Warn().Err(err).Str("mentioned", mentioned).Msg("failed to store mention")
		}
	}
}

// mentionContext returns what follows the first mention of userID in text,
// or all of text when nothing does.
func mentionContext(text, userID string) string {
	parts := regexp.MustCompile(`(?i)<@`+regexp.QuoteMeta(userID)+`>`).Split(text, -1)
	if len(parts) > 1 && parts[1] != "" {
		return parts[1]
	}
	return text
}

// Announce posts the welcome message unless it has been turned off. The
// setting is initialised to on the first time.
func (b *Bot) Announce(ctx context.Context) error {
	enabled := true
	found, err := kv.GetJSON(ctx, b.services.Settings, StartupMessageKey, &enabled)
	if err != nil {
		b.logger.Warn().Err(err).Msg("startup message setting unavailable, assuming on")
		enabled = true
	}
	if err == nil && !found {
		if err := kv.SetJSON(ctx, b.services.Settings, StartupMessageKey, true); err != nil {
			b.logger.Warn().Err(err).Msg("failed to initialise startup message setting")
		}
	}
	if !enabled {
		b.logger.Info().Msg("startup message is disabled")
		return nil
	}
	if b.opts.AnnounceChannel == "" {
		b.logger.Info().Msg("no announce channel configured")
		return nil
	}

	_, err = b.platform.PostMessage(ctx, b.opts.AnnounceChannel, "", message.Text(
		"🤖 *Sup everyone! DeBot is online!*\n\nI'm here to help with:\n"+
			"• 🖨️ Watching deployor's prints\n"+
			"• ✨ Making commit messages better (`/commiti`)\n"+
			"• 🔍 Fixing errors (`ELLAB:`)\n"+
			"• 🧹 Purging messages (`/purgeee`)"))
	return err
}
