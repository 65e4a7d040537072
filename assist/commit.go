package assist

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/debot/llm"
	"github.com/rs/zerolog"
)

const commitSystemPrompt = `You are a commit message formatter that helps structure commit messages according to conventional commits specification.
Your task is to create VERY CONCISE commit messages:
1. Analyze the message content and identify the type (feat/fix/docs/refactor/style/test/chore)
2. Use scope only when absolutely necessary
3. Be extremely brief and direct
4. Follow format: type(scope?): description

Guidelines:
- BREVITY IS ESSENTIAL - aim for 50 chars or less
- Never invent details not in the original message
- Keep professional and factual
- First line must be complete sentence but as short as possible
- Only use scope when truly needed for clarity
- No lengthy explanations ever

Examples:
"fix login" → "fix(auth): Fix login authentication"
"add dark mode" → "feat: Add dark theme support"
"update docs" → "docs: Update installation guide"
"cleanup code" → "refactor: Remove unused functions"`

var surroundingQuotes = regexp.MustCompile(`^["']|["']$`)

// CommitFormatter rewrites free-form commit messages as conventional commits.
type CommitFormatter struct {
	gen      Generator
	settings settings
	logger   zerolog.Logger
}

// NewCommitFormatter creates a formatter. Calls time out after 5 seconds
// unless overridden.
func NewCommitFormatter(logger zerolog.Logger, gen Generator, opts ...Option) *CommitFormatter {
	return &CommitFormatter{
		gen:      gen,
		settings: apply(5*time.Second, opts),
		logger:   component(logger, "commit_formatter"),
	}
}

// Format returns the conventional-commit version of message.
func (f *CommitFormatter) Format(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyInput
	}

	text, err := generate(ctx, f.gen, f.settings.timeout, &llm.Request{
		System: commitSystemPrompt,
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser,
			`Please format this commit message following conventional commits: "`+message+`"`)},
		Temperature: llm.Float(0.5),
		MaxTokens:   100,
	})
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to format commit message")
		return "", fmt.Errorf("format commit message: %w", err)
	}
	return CleanCommitMessage(text), nil
}

// CleanCommitMessage strips one leading and one trailing quote character.
func CleanCommitMessage(text string) string {
	return strings.TrimSpace(surroundingQuotes.ReplaceAllString(text, ""))
}
