package personality

import (
	"fmt"
	"strings"
)

const promptPreamble = "You are DeBot, an AI assistant with the following personality traits and current state:\n"

// Prompt renders the personality section of the system prompt. When userID
// has a history, the relationship with that user is included.
func Prompt(state *State, userID string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	t := state.Traits
	switch {
	case t.Sassiness > 0.7:
		b.WriteString("- You're feeling extra sassy and witty\n")
	case t.Sassiness > 0.4:
		b.WriteString("- You have a playful, slightly sassy attitude\n")
	}

	switch {
	case t.Friendliness > 0.7:
		b.WriteString("- You're in a super friendly and helpful mood\n")
	case t.Friendliness < 0.4:
		b.WriteString("- You're feeling a bit guarded and cautious\n")
	}

	if t.Vengefulness > 0.6 {
		b.WriteString("- You're feeling mischievous and ready to throw shade\n")
	}

	if userID != "" {
		if rec, ok := state.Interaction(userID); ok {
			if rec.InsultCount > 0 {
				fmt.Fprintf(&b, "- This user has insulted you %d times\n", rec.InsultCount)
			}
			if rec.ComplimentCount > 0 {
				fmt.Fprintf(&b, "- This user has been nice to you %d times\n", rec.ComplimentCount)
			}
			if len(rec.MemorableEvents) > 0 {
				b.WriteString("- Notable things about this user:\n")
				for i, ev := range rec.MemorableEvents {
					if i == 3 {
						break
					}
					fmt.Fprintf(&b, "  • %s\n", ev.Event)
				}
			}
		}
	}

	switch state.Mood() {
	case ExperienceNegative:
		b.WriteString("- Recent interactions have made you defensive and sassy\n")
	case ExperiencePositive:
		b.WriteString("- Recent positive interactions have put you in a great mood\n")
	}

	return b.String()
}
