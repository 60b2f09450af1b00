package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Preview computes upcoming run times of a backup schedule. Backup settings
// carry standard 5-field expressions, so no seconds field is parsed.
type Preview struct {
	parser cron.Parser
	loc    *time.Location
}

func New(loc *time.Location) *Preview {
	if loc == nil {
		loc = time.Local
	}
	return &Preview{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:    loc,
	}
}

// Check parses the expression fully, beyond the field count the settings
// validator enforces.
func (p *Preview) Check(spec string) error {
	if _, err := p.parser.Parse(spec); err != nil {
		return fmt.Errorf("parse cron expression: %w", err)
	}
	return nil
}

// NextRuns returns the next n activation times after from.
func (p *Preview) NextRuns(spec string, from time.Time, n int) ([]time.Time, error) {
	schedule, err := p.parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression: %w", err)
	}

	runs := make([]time.Time, 0, n)
	next := from.In(p.loc)
	for i := 0; i < n; i++ {
		next = schedule.Next(next)
		if next.IsZero() {
			break
		}
		runs = append(runs, next)
	}
	return runs, nil
}
