package ledger

import (
	"context"
	"fmt"

	"genstudio/internal/domain"
)

// DayReport summarizes free-tier consumption for one day.
type DayReport struct {
	Day              string
	FreeCreditsUsed  int
	FreeValueCents   int64
	UniqueUsers      int
	RemainingFreeCap int64
}

// UsageReport returns one entry per day for the last days days ending today,
// oldest first. Days without free-tier use are reported as zero.
func (l *Ledger) UsageReport(ctx context.Context, days int) ([]DayReport, error) {
	if days <= 0 {
		days = 1
	}
	today := l.now().UTC()
	from := domain.DayKey(today.AddDate(0, 0, -(days - 1)))
	to := domain.DayKey(today)
	rows, err := l.usage.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	byDay := make(map[string]domain.DailyUsage, len(rows))
	for _, row := range rows {
		byDay[row.Day] = row
	}
	out := make([]DayReport, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := domain.DayKey(today.AddDate(0, 0, -i))
		row := byDay[day]
		remaining := l.policy.DailyFreeCapCents - row.ValueCents
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, DayReport{
			Day:              day,
			FreeCreditsUsed:  row.CreditsUsed,
			FreeValueCents:   row.ValueCents,
			UniqueUsers:      len(row.UniqueUsers),
			RemainingFreeCap: remaining,
		})
	}
	return out, nil
}

// TodayUsage returns the free-tier record for the current day, creating it
// when absent.
func (l *Ledger) TodayUsage(ctx context.Context) (*domain.DailyUsage, error) {
	return l.usage.GetOrCreate(ctx, domain.DayKey(l.now()))
}
