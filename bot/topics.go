package bot

import "strings"

// DefaultTopic is used when no keyword matches.
const DefaultTopic = "that topic"

var topics = []struct {
	keywords []string
	topic    string
}{
	{[]string{"help", "assistance", "support"}, "getting help"},
	{[]string{"code", "programming", "developer", "coding"}, "programming"},
	{[]string{"javascript", "js", "nodejs", "node.js"}, "JavaScript"},
	{[]string{"python", "django", "flask"}, "Python"},
	{[]string{"web", "html", "css"}, "web development"},
	{[]string{"database", "sql", "mongodb", "postgres"}, "databases"},
	{[]string{"deploy", "server", "hosting", "cloud"}, "deployment"},
	{[]string{"error", "bug", "fix", "issue"}, "troubleshooting"},
	{[]string{"git", "github", "version", "commit"}, "version control"},
	{[]string{"api", "endpoint", "rest", "graphql"}, "APIs"},
	{[]string{"security", "auth", "authentication"}, "security"},
	{[]string{"test", "testing", "unit test"}, "testing"},
	{[]string{"docker", "container", "kubernetes"}, "containerization"},
	{[]string{"ai", "ml", "machine learning"}, "AI/ML"},
	{[]string{"design", "ui", "ux", "user interface"}, "design"},
	{[]string{"agile", "scrum", "project"}, "project management"},
}

// TopicOf names what a message is about. Keywords match as substrings, so
// the first row that hits anywhere in the message wins.
func TopicOf(text string) string {
	lower := strings.ToLower(text)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.topic
			}
		}
	}
	return DefaultTopic
}
