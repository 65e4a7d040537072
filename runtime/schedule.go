package runtime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a job schedule.
// Supports:
//   - Cron expressions: "0 */15 * * * *" (6-field) or "*/15 * * * *" (5-field)
//   - Descriptors: "@daily", "@every 1h"
//   - Go duration strings: "15m", "2h", "1h30m"
func ParseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	sched, err := scheduleParser.Parse(schedule)
	if err == nil {
		return sched, nil
	}

	d, derr := time.ParseDuration(schedule)
	if derr != nil {
		return nil, fmt.Errorf("parse schedule %q as cron expression or duration: %w", schedule, err)
	}
	if d <= 0 {
		return nil, fmt.Errorf("schedule %q must be positive", schedule)
	}
	return cron.Every(d), nil
}

// NextRun returns when schedule next fires after base.
func NextRun(schedule string, base time.Time) (time.Time, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(base), nil
}
