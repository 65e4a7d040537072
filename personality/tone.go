package personality

import "strings"

// Tone is the classification of one message. Both flags are computed
// independently; insult wins when both are set.
type Tone struct {
	Insult bool
	Kind   bool
}

// Experience maps the tone to the experience it leaves behind.
func (t Tone) Experience() ExperienceKind {
	switch {
	case t.Insult:
		return ExperienceNegative
	case t.Kind:
		return ExperiencePositive
	default:
		return ExperienceNeutral
	}
}

// ToneRule matches a lowercase substring. Rules without Insult set detect
// kindness.
type ToneRule struct {
	Substring string
	Insult    bool
}

var (
	insultWords = []string{
		"stupid", "dumb", "idiot", "useless", "hate", "bad", "worst",
		"terrible", "awful", "garbage", "trash", "broken", "suck",
		"pathetic", "annoying", "worthless", "dumb bot", "stupid bot",
	}
	kindWords = []string{
		"thank", "thanks", "good", "great", "awesome", "amazing",
		"helpful", "nice", "love", "appreciate", "well done", "cool",
		"fantastic", "brilliant", "excellent",
	}
)

// DefaultToneRules returns the insult rules followed by the kindness rules.
func DefaultToneRules() []ToneRule {
	rules := make([]ToneRule, 0, len(insultWords)+len(kindWords))
	for _, w := range insultWords {
		rules = append(rules, ToneRule{Substring: w, Insult: true})
	}
	for _, w := range kindWords {
		rules = append(rules, ToneRule{Substring: w})
	}
	return rules
}

// Classify scores text against rules. Matching is case-insensitive
// substring search, so "bad" also fires inside "badge".
func Classify(rules []ToneRule, text string) Tone {
	lower := strings.ToLower(text)
	var tone Tone
	for _, r := range rules {
		if (r.Insult && tone.Insult) || (!r.Insult && tone.Kind) {
			continue
		}
		if strings.Contains(lower, r.Substring) {
			if r.Insult {
				tone.Insult = true
			} else {
				tone.Kind = true
			}
		}
	}
	return tone
}
