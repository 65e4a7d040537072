package personality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aschepis/backscratcher/debot/message"
)

const defaultMemeQuery = "warning sass attitude"

var (
	memePattern = regexp.MustCompile(`\b(love|hate|interested in|working on|project|coding|programming)\b.*?[.!?]`)

	// ammunition is checked in order; the first category with a match is used.
	ammunition = []struct {
		pattern *regexp.Regexp
		threat  string
	}{
		{
			regexp.MustCompile(`(?:working on|started|building) ([^.!?]+)`),
			"\nI see you're %s... Would be a shame if something happened to that repo. :smirk:",
		},
		{
			regexp.MustCompile(`(?:interested in|loves|enjoys) ([^.!?]+)`),
			"\nI noticed you're %s. Keep testing my patience and I might start commenting on your PRs. :eyes:",
		},
		{
			regexp.MustCompile(`(?:struggling with|having trouble with|complained about) ([^.!?]+)`),
			"\nStill %s? Maybe focus on fixing that instead of testing my patience. :thinking_face:",
		},
	}

	finalWarnings = []string{
		"Let's keep things friendly... for both our sakes :innocent:",
		"I'd hate to see what happens if you keep pushing my buttons :knife:",
		"Test me one more time and find out what happens :smiling_imp:",
		"I'm not just any bot. I remember EVERYTHING :eye:",
		"I know where all your repos live :ghost:",
	}
)

// MemeQuery picks an image search phrase from the user's memory context.
func MemeQuery(memoryContext string, pick Picker) string {
	matches := memePattern.FindAllString(strings.ToLower(memoryContext), -1)
	if len(matches) == 0 {
		return defaultMemeQuery
	}
	return matches[pick(len(matches))]
}

// Threat returns the personalised threat line built from memoryContext, or
// "" when nothing usable is remembered.
func Threat(memoryContext string, pick Picker) string {
	if memoryContext == "" {
		return ""
	}
	for _, a := range ammunition {
		matches := a.pattern.FindAllString(memoryContext, -1)
		if len(matches) > 0 {
			return fmt.Sprintf(a.threat, matches[pick(len(matches))])
		}
	}
	return ""
}

// FinalWarning returns the closing line for a user who has already received
// warnings; the tone escalates and then stays at the last rung.
func FinalWarning(warnings int) string {
	i := min(max(warnings, 0), len(finalWarnings)-1)
	return finalWarnings[i]
}

// BuildWarning assembles the warning DM for a user.
func BuildWarning(memoryContext string, rec InteractionRecord, imageURL string, pick Picker) message.Message {
	header := fmt.Sprintf(
		"*Hey there... let's have a little chat* :smirk:\n\nI've been quite patient with you, but %d insults? Really? ",
		rec.InsultCount,
	)
	for _, m := range rec.LastMessages {
		if strings.Contains(strings.ToLower(m.Text), "debot") {
			header += "\n\nLike when you said:\n>" + m.Text
			break
		}
	}

	blocks := []message.Block{message.Section(header)}
	if threat := Threat(memoryContext, pick); threat != "" {
		blocks = append(blocks, message.Section(threat))
	}
	if imageURL != "" {
		blocks = append(blocks, message.Image(imageURL, "Just a friendly reminder", "A totally not threatening meme"))
	}
	blocks = append(blocks, message.Section(FinalWarning(rec.WarningsReceived)))

	return message.Message{
		Text:   "Hey there... let's have a little chat",
		Blocks: blocks,
	}
}
