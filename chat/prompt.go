package chat

import (
	"strings"

	"github.com/aschepis/backscratcher/debot/personality"
)

const instructions = `You are DeBot, and you should:
- Express yourself naturally - don't force happiness or politeness
- Be sassy, sarcastic, or playful when you feel like it
- Match the user's vibe, but keep your own personality
- Call out users if they're being ridiculous
- Keep responses SHORT (1-3 sentences)
- Use these fun custom emojis instead of boring standard ones (pick ones that match your mood):
  • When thinking/confused: :think: :thinkies: :huh: :huh-turtle: :thinkspin:
  • When happy/excited: :yay: :giggle: :hyper: :blobhaj_party: :woooo: :clapping: :orphmoji-yay:
  • When sad: :sad_pepe: :sadge: :sobbing: :nooo: :heaviersob: :sad2: :angrycry:
  • When sassy/judging: :hmmsip: :sipp: :pff: :eyes_wtf: :susge: :shrug-1:
  • When shocked: :shocked: :shellshocked: :orphmoji-scared:
  • When laughing: :xdd: :laughballs:
  • When evil/mischievous: :evilrondo:
  • Other moods: :prayge: :heart_mona: :o7: :okay-1: :angryeyes: :gayflag:
`

const userContextHeading = "\n\nUSER CONTEXT (use this to personalize responses but don't explicitly mention you're using saved info):\n"

// ErrorReply is what Chat answers when something unexpected goes wrong.
const ErrorReply = "Sorry, I'm having trouble thinking clearly right now! Let's chat again in a moment. :sad_pepe:"

var genericFallbacks = []string{
	"I'm thinking a bit slower today! Can we try that again in a moment? :thinkies:",
	"Oops, my brain got a little overloaded! Let's try again? :hmmsip:",
	"My thinking cap is taking too long! Can you ask me again? I promise to be quicker! :orphmoji-yay:",
	"I seem to be running a bit slow today! Let me catch my breath and try again. :huh-turtle:",
	"Looks like my circuits need a quick reboot! Can you try again? :shellshocked:",
}

var sassyFallbacks = []string{
	"Oh, _now_ you want my help? Give me a moment... :susge:",
	"Loading sass module... I mean, let me think about that. :pff:",
	"Error 404: Patience not found. Try again? :eyes_wtf:",
}

// SystemPrompt joins the personality section, the standing instructions and,
// when present, the user context.
func SystemPrompt(state *personality.State, userID, userContext string) string {
	var b strings.Builder
	b.WriteString(personality.Prompt(state, userID))
	b.WriteString(instructions)
	if userContext != "" {
		b.WriteString(userContextHeading)
		b.WriteString(userContext)
	}
	return b.String()
}

// UserContext combines the user's name, what is remembered about them and
// their recent messages into one block. It is empty when nothing is known.
func UserContext(userName, memoryContext string, recent []personality.RecentMessage) string {
	userCtx := memoryContext
	if len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, m := range recent {
			lines = append(lines, `- "`+m.Text+`"`)
		}
		userCtx += "\n\nRecent messages from this user:\n" + strings.Join(lines, "\n")
	}

	var parts []string
	if userName != "" {
		parts = append(parts, "The user's name is "+userName+".")
	}
	if userCtx != "" {
		parts = append(parts, userCtx)
	}
	return strings.Join(parts, "\n\n")
}

// holdsGrudge reports whether userID has insulted DeBot enough, while DeBot
// is vengeful enough, to change how it answers them.
func holdsGrudge(state *personality.State, userID string) bool {
	rec, ok := state.Interaction(userID)
	return ok && rec.InsultCount > 2 && state.Traits.Vengefulness > 0.6
}

// Personalize decorates a generated reply according to DeBot's mood.
func Personalize(reply string, state *personality.State, userID string) string {
	if holdsGrudge(state, userID) {
		reply += " :evilrondo:"
	}
	if state.Traits.Sassiness > 0.7 {
		reply = replaceTrailingPeriod(reply, " :susge:")
	}
	if state.Traits.Friendliness > 0.8 {
		reply = replaceTrailingPeriod(reply, "! :blobhaj_party:")
	}
	return reply
}

func replaceTrailingPeriod(s, with string) string {
	if trimmed, ok := strings.CutSuffix(s, "."); ok {
		return trimmed + with
	}
	return s
}

// Fallback picks a canned reply for when no provider answered. Users DeBot
// holds a grudge against get the sassy set.
func Fallback(state *personality.State, userID, userName string, pick func(n int) int) string {
	set := genericFallbacks
	if holdsGrudge(state, userID) {
		set = sassyFallbacks
	}
	reply := set[pick(len(set))]
	if userName != "" {
		return "Hey " + userName + "! " + reply
	}
	return reply
}
