package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const maxBodyBytes = 1 << 20

// readVerified reads the request body and checks its Slack signature.
func (s *Server) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if s.cfg.SigningSecret == "" {
		return body, nil
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, s.cfg.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("verifier: %w", err)
	}
	if _, err := verifier.Write(body); err != nil {
		return nil, fmt.Errorf("verifier: %w", err)
	}
	if err := verifier.Ensure(); err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}
	return body, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := s.readVerified(w, r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected event request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed event")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))
	case slackevents.CallbackEvent:
		if ev, ok := messageEvent(event.InnerEvent); ok {
			s.dispatch(r, func(ctx context.Context) { s.bot.HandleMessage(ctx, ev) })
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

// messageEvent extracts the message from the event types the bot reads.
// Mentions also arrive as plain messages; the bot deduplicates them.
func messageEvent(inner slackevents.EventsAPIInnerEvent) (bot.MessageEvent, bool) {
	switch ev := inner.Data.(type) {
	case *slackevents.MessageEvent:
		return bot.MessageEvent{
			Channel:  ev.Channel,
			User:     ev.User,
			Text:     ev.Text,
			TS:       ev.TimeStamp,
			ThreadTS: ev.ThreadTimeStamp,
			BotID:    ev.BotID,
			SubType:  ev.SubType,
		}, true
	case *slackevents.AppMentionEvent:
		return bot.MessageEvent{
			Channel:  ev.Channel,
			User:     ev.User,
			Text:     ev.Text,
			TS:       ev.TimeStamp,
			ThreadTS: ev.ThreadTimeStamp,
			BotID:    ev.BotID,
		}, true
	default:
		return bot.MessageEvent{}, false
	}
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	body, err := s.readVerified(w, r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected command request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	sc, err := slack.SlashCommandParse(r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("malformed slash command")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	cmd := bot.Command{
		Name:        sc.Command,
		Text:        sc.Text,
		UserID:      sc.UserID,
		ChannelID:   sc.ChannelID,
		ResponseURL: sc.ResponseURL,
	}
	s.dispatch(r, func(ctx context.Context) { s.bot.HandleCommand(ctx, cmd) })
	w.WriteHeader(http.StatusOK)
}
