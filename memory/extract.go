package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minDetailRunes    = 5
	maxDetailRunes    = 100
	keywordImportance = 0.85
	factImportance    = 0.7
)

// Rule scores text matching Pattern. The whole match becomes the remembered
// content.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Importance float64
}

// Detail is a candidate memory extracted from a message.
type Detail struct {
	Content    string
	Importance float64
	// Rule names the rule that matched, or "keyword", "fact", "generic".
	Rule string
}

// DefaultRules returns the rule table in evaluation order. The first match wins.
func DefaultRules() []Rule {
	rule := func(name, pattern string, importance float64) Rule {
		return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Importance: importance}
	}
	return []Rule{
		rule("name", `my name is\s+(\w+)`, 0.9),
		rule("identity", `\bi(?:'m| am)\s+([^.,:;!?]+)`, 0.8),
		rule("location", `\bi live in\s+([^.,:;!?]+)`, 0.9),
		rule("work", `\bi work(?: as| at| for)?\s+([^.,:;!?]+)`, 0.8),
		rule("preference", `\bi (?:like|love|enjoy|prefer)\s+([^.,:;!?]+)`, 0.7),
		rule("favorite", `my favorite\s+([^.,:;!?]+)`, 0.7),
		rule("experience", `\bi(?:'ve| have)\s+([^.,:;!?]+)`, 0.6),
		rule("plan", `\bi(?:'ll| will)\s+([^.,:;!?]+)`, 0.6),
		rule("dislike", `(?:don't|do not) (?:like|want|enjoy)\s+([^.,:;!?]+)`, 0.7),
		rule("hobby", `my hobby is\s+([^.,:;!?]+)`, 0.7),
		rule("role", `\bi(?:'m| am) (?:a|an)\s+([^.,:;!?]+)`, 0.8),
		rule("ability", `\bi can(?:'t| not)?\s+([^.,:;!?]+)`, 0.6),
		rule("knowledge", `\bi know\s+([^.,:;!?]+)`, 0.7),
		rule("recall", `\bi remember\s+([^.,:;!?]+)`, 0.8),
		rule("told", `\bi told you\s+([^.,:;!?]+)`, 0.9),
		rule("ask_recall", `do you remember\s+([^.,:;!?]+)`, 0.9),
		rule("remember_when", `remember when\s+([^.,:;!?]+)`, 0.9),
	}
}

var (
	memoryKeywords = []string{"remember", "forgot", "told you"}
	factVerbs      = []string{" is ", " are ", " was ", " were ", " has ", " have "}
)

// FindMemorableDetails decides whether text is worth remembering. It returns
// false for text shorter than five characters or scored below the
// configured threshold.
func (l *Ledger) FindMemorableDetails(text string) (Detail, bool) {
	if utf8.RuneCountInString(text) < minDetailRunes {
		return Detail{}, false
	}

	detail := l.classify(text)
	if detail.Importance < l.opts.MemorableThreshold {
		return Detail{}, false
	}
	return detail, true
}

func (l *Ledger) classify(text string) Detail {
	for _, r := range l.rules {
		if m := r.Pattern.FindString(text); m != "" {
			return Detail{Content: truncateString(m, maxDetailRunes), Importance: r.Importance, Rule: r.Name}
		}
	}

	content := truncateString(text, maxDetailRunes)
	lower := strings.ToLower(text)
	for _, kw := range memoryKeywords {
		if strings.Contains(lower, kw) {
			return Detail{Content: content, Importance: keywordImportance, Rule: "keyword"}
		}
	}
	for _, verb := range factVerbs {
		if strings.Contains(text, verb) {
			return Detail{Content: content, Importance: factImportance, Rule: "fact"}
		}
	}
	return Detail{Content: content, Importance: l.opts.GenericImportance, Rule: "generic"}
}
