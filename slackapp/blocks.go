package slackapp

import (
	"github.com/aschepis/backscratcher/debot/message"
	"github.com/samber/lo"
	"github.com/slack-go/slack"
)

// Blocks converts a message's layout into Block Kit.
func Blocks(msg message.Message) []slack.Block {
	return lo.FilterMap(msg.Blocks, func(b message.Block, _ int) (slack.Block, bool) {
		block := toBlock(b)
		return block, block != nil
	})
}

func toBlock(b message.Block) slack.Block {
	switch b.Kind {
	case message.KindHeader:
		return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, b.Text, true, false))
	case message.KindImage:
		var title *slack.TextBlockObject
		if b.Title != "" {
			title = slack.NewTextBlockObject(slack.PlainTextType, b.Title, false, false)
		}
		return slack.NewImageBlock(b.ImageURL, b.AltText, "", title)
	case message.KindContext:
		return slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, b.Text, false, false))
	case message.KindSection:
		var text *slack.TextBlockObject
		if b.Text != "" {
			text = markdown(b.Text)
		}
		var fields []*slack.TextBlockObject
		if len(b.Fields) > 0 {
			fields = lo.Map(b.Fields, func(f string, _ int) *slack.TextBlockObject { return markdown(f) })
		}
		var accessory *slack.Accessory
		if b.Button != nil {
			btn := slack.NewButtonBlockElement(b.Button.ActionID, "", slack.NewTextBlockObject(slack.PlainTextType, b.Button.Text, true, false))
			btn.URL = b.Button.URL
			accessory = slack.NewAccessory(btn)
		}
		if text == nil && fields == nil {
			return nil
		}
		return slack.NewSectionBlock(text, fields, accessory)
	default:
		return nil
	}
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

// msgOptions renders msg as options for the chat.* methods.
func msgOptions(msg message.Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if blocks := Blocks(msg); len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	return opts
}
