package assist

import (
	"context"
	"strings"
	"time"

	"github.com/aschepis/backscratcher/debot/llm"
	"github.com/rs/zerolog"
)

const ellabSystemPrompt = `Hey! I'm ELLAB (Error Lookup & Lab), your coding companion and error-squashing buddy! 🔍
When analyzing errors, be BRIEF and CONCISE:
1. 🎯 Explain the error in 1-2 SHORT sentences
   - Get straight to the point
   - No lengthy explanations
   - Use plain language
2. 🛠️ Provide BRIEF step-by-step solutions
   - Keep it to 2-3 short bullet points
   - Code examples should be minimal
   - Only essential information
3. 🌟 Keep it SHORT and FOCUSED
   - Avoid unnecessary detail
   - MAXIMUM 3-5 lines total for solution
   - Be direct and clear
Example format (BRIEF):
"🔍 WHAT HAPPENED:
[One sentence explanation]
💡 FIX:
• [First step - one line]
• [Second step - one line]"`

const (
	markerLetsFix = "💡 LET'S FIX IT:"
	markerFix     = "💡 FIX:"
	markerProTip  = "🌟 PRO TIP:"
)

var solutionIndicators = []string{
	"Solution:", "Fix:", "To fix this:", "Suggested fix:",
	"To resolve this:", "Here's how to fix it:", "Steps to fix:",
	"How to fix:", "Try this:",
}

// Analysis is an explanation of an error and how to fix it.
type Analysis struct {
	Explanation string
	Solution    string
}

// FailedAnalysis is returned when the error could not be analysed.
var FailedAnalysis = Analysis{
	Explanation: "👾 Oopsie! I had trouble processing that error.",
	Solution: "🔧 Try these steps:\n" +
		"• Paste the error again\n" +
		"• Break it into smaller parts\n" +
		"• Try again in a minute if this persists",
}

// ErrorAnalyzer explains error messages.
type ErrorAnalyzer struct {
	gen      Generator
	settings settings
	logger   zerolog.Logger
}

// NewErrorAnalyzer creates an analyser. Calls time out after 15 seconds
// unless overridden.
func NewErrorAnalyzer(logger zerolog.Logger, gen Generator, opts ...Option) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		gen:      gen,
		settings: apply(15*time.Second, opts),
		logger:   component(logger, "error_analyzer"),
	}
}

// Analyze explains errText. It never fails; problems yield FailedAnalysis.
func (a *ErrorAnalyzer) Analyze(ctx context.Context, errText string) Analysis {
	if strings.TrimSpace(errText) == "" {
		return FailedAnalysis
	}

	text, err := generate(ctx, a.gen, a.settings.timeout, &llm.Request{
		System: ellabSystemPrompt,
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser,
			"Please analyze this error and provide both a brief explanation and solution:\n\n"+errText)},
		Temperature: llm.Float(0.5),
		MaxTokens:   200,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to analyze error")
		return FailedAnalysis
	}
	return ParseAnalysis(text)
}

// ParseAnalysis splits a model reply into explanation and solution.
func ParseAnalysis(content string) Analysis {
	result := Analysis{
		Explanation: "🤔 I understood the error but couldn't split my response cleanly.",
		Solution:    "Here's what I know:\n" + content,
	}

	if marker, ok := fixMarker(content); ok {
		explanation, solution, _ := strings.Cut(content, marker)
		result = Analysis{
			Explanation: strings.TrimSpace(explanation),
			Solution:    strings.TrimSpace(solution),
		}
	} else {
		for _, indicator := range solutionIndicators {
			parts := strings.Split(content, indicator)
			if len(parts) < 2 {
				continue
			}
			result = Analysis{
				Explanation: "🔍 " + strings.TrimSpace(parts[0]),
				Solution:    "💡 " + strings.TrimSpace(parts[1]),
			}
			break
		}
	}

	if _, tip, ok := strings.Cut(content, markerProTip); ok {
		tip, _, _ = strings.Cut(tip, markerProTip)
		if !strings.Contains(result.Solution, markerProTip) {
			result.Solution += "\n\n" + markerProTip + tip
		}
	}
	return result
}

func fixMarker(content string) (string, bool) {
	switch {
	case strings.Contains(content, markerLetsFix):
		return markerLetsFix, true
	case strings.Contains(content, markerFix):
		return markerFix, true
	default:
		return "", false
	}
}
