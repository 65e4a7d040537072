// Package printer turns OctoEverywhere failure-detection webhooks into
// channel alerts.
package printer

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aschepis/backscratcher/debot/message"
	"github.com/rs/zerolog"
)

// FailureWarning is the only event type that produces an alert.
const FailureWarning = "Gadget Possible Failure Warning"

const zOffsetLimitMM = 0.5

// Payload is the subset of the webhook body DeBot reads. Numeric fields
// accept both JSON numbers and numeric strings.
type Payload struct {
	EventType        string      `json:"EventType"`
	SecretKey        string      `json:"SecretKey"`
	PrinterName      string      `json:"PrinterName"`
	FileName         string      `json:"FileName"`
	Progress         json.Number `json:"Progress"`
	TimeRemainingSec json.Number `json:"TimeRemainingSec"`
	Error            string      `json:"Error"`
	ZOffsetMM        json.Number `json:"ZOffsetMM"`
	QuickViewURL     string      `json:"QuickViewUrl"`
	SnapshotURL      string      `json:"SnapshotUrl"`
}

// Severity ranks an issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Issue is one problem spotted in a payload.
type Issue struct {
	Kind     string
	Severity Severity
	Message  string
	Tips     []string
}

var errorTips = []struct {
	substring string
	tips      []string
}{
	{"layer shift", []string{"Check belt tension", "Verify stepper motor connections", "Ensure print bed is stable"}},
	{"under", []string{"Check filament feed rate", "Verify nozzle temperature", "Clean the nozzle"}},
	{"adhesion", []string{"Clean the print bed", "Adjust bed temperature", "Check first layer settings"}},
}

var genericTips = []string{
	"Monitor print progress closely",
	"Check mechanical components",
	"Verify temperature settings",
}

var zOffsetTips = []string{
	"Consider checking bed leveling",
	"Verify first layer adhesion",
	"Monitor initial layer height",
}

// Analyzer validates webhooks and builds alerts.
type Analyzer struct {
	secret string
	logger zerolog.Logger
}

// NewAnalyzer creates an Analyzer. An empty secret disables the key check.
func NewAnalyzer(logger zerolog.Logger, secret string) *Analyzer {
	return &Analyzer{
		secret: secret,
		logger: logger.With().Str("component", "printer").Logger(),
	}
}

// Handle returns the alert for p. ok is false when p is not a failure
// warning, fails the secret check, or reports nothing actionable.
func (a *Analyzer) Handle(p Payload) (msg message.Message, ok bool) {
	if p.EventType != FailureWarning {
		a.logger.Debug().Str("event_type", p.EventType).Msg("ignoring printer event")
		return message.Message{}, false
	}
	if a.secret != "" && subtle.ConstantTimeCompare([]byte(p.SecretKey), []byte(a.secret)) != 1 {
		a.logger.Error().Str("printer", p.PrinterName).Msg("invalid secret key received")
		return message.Message{}, false
	}

	issues := Analyze(p)
	if len(issues) == 0 {
		return message.Message{}, false
	}
	a.logger.Info().Str("printer", p.PrinterName).Int("issues", len(issues)).Msg("printer alert")
	return Alert(p, issues), true
}

// Analyze lists the issues in p.
func Analyze(p Payload) []Issue {
	var issues []Issue
	if p.Error != "" {
		issues = append(issues, Issue{
			Kind:     "error",
			Severity: SeverityHigh,
			Message:  "🚫 Error detected: " + p.Error,
			Tips:     ErrorTips(p.Error),
		})
	}
	if p.ZOffsetMM != "" {
		if z, err := p.ZOffsetMM.Float64(); err == nil && math.Abs(z) > zOffsetLimitMM {
			issues = append(issues, Issue{
				Kind:     "z-offset",
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("⚠️ Significant Z-offset detected (%smm)", p.ZOffsetMM),
				Tips:     zOffsetTips,
			})
		}
	}
	return issues
}

// ErrorTips returns troubleshooting tips for an error description.
func ErrorTips(errText string) []string {
	lower := strings.ToLower(errText)
	for _, e := range errorTips {
		if strings.Contains(lower, e.substring) {
			return e.tips
		}
	}
	return genericTips
}

// Alert renders the channel message for issues.
func Alert(p Payload, issues []Issue) message.Message {
	blocks := []message.Block{
		message.Header("🚨 3D Printer Alert! Time to Check Your Print!"),
		{
			Kind: message.KindSection,
			Fields: []string{
				"*Printer:*\n" + p.PrinterName,
				"*File:*\n" + orNA(p.FileName),
				"*Progress:*\n" + orNA(p.Progress.String()) + "%",
				"*Time Remaining:*\n" + FormatDuration(seconds(p.TimeRemainingSec)),
			},
		},
	}

	for _, issue := range issues {
		text := "*" + issue.Message + "*"
		if issue.Severity == SeverityHigh {
			text += " 🔥"
		}
		blocks = append(blocks, message.Section(text))
		if len(issue.Tips) > 0 {
			blocks = append(blocks, message.Section("💡 *Quick Tips:*\n• "+strings.Join(issue.Tips, "\n• ")))
		}
	}

	if p.QuickViewURL != "" {
		blocks = append(blocks, message.Block{
			Kind: message.KindSection,
			Text: "👀 *Need a closer look?*",
			Button: &message.Button{
				Text:     "Check Printer Status",
				URL:      p.QuickViewURL,
				ActionID: "check_printer",
			},
		})
	}
	if p.SnapshotURL != "" {
		blocks = append(blocks, message.Image(p.SnapshotURL, "Current Print Status", "3D print snapshot"))
	}
	blocks = append(blocks, message.Block{
		Kind: message.KindContext,
		Text: "💪 *Remember:* Catching issues early means better prints! Keep an eye on those layers!",
	})

	return message.Message{
		Text:   "3D Printer Alert: Potential issue detected!",
		Blocks: blocks,
	}
}

// FormatDuration renders seconds as "Xh Ym", "Ym" or "N/A" for zero.
func FormatDuration(sec float64) string {
	if sec <= 0 {
		return "N/A"
	}
	total := int(sec)
	hrs := total / 3600
	mins := (total % 3600) / 60
	if hrs > 0 {
		return fmt.Sprintf("%dh %dm", hrs, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func seconds(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
