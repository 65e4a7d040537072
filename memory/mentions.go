package memory

import "regexp"

var mentionPattern = regexp.MustCompile(`<@([A-Z0-9]+)>`)

// ExtractMentionedUsers returns the user IDs mentioned in text, in order of
// appearance, duplicates included.
func ExtractMentionedUsers(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}
