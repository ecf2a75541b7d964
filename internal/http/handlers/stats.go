package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"genstudio/internal/billing"
	"genstudio/internal/ledger"
)

const statsCacheKey = "admin:stats"

type dayStatsDTO struct {
	Date               string   `json:"date"`
	FreeCreditsUsed    int      `json:"freeCreditsUsed"`
	FreeCreditsValue   float64  `json:"freeCreditsValue"`
	UniqueUsers        int      `json:"uniqueUsers"`
	RemainingFreeValue *float64 `json:"remainingFreeValue,omitempty"`
}

type adminStats struct {
	Today     dayStatsDTO   `json:"today"`
	Last7Days []dayStatsDTO `json:"last7Days"`
	Users     struct {
		Total             int `json:"total"`
		WithCredits       int `json:"withCredits"`
		CompletedProfiles int `json:"completedProfiles"`
	} `json:"users"`
	Generations struct {
		Total       int    `json:"total"`
		Successful  int    `json:"successful"`
		SuccessRate string `json:"successRate"`
	} `json:"generations"`
}

func (a *App) AdminStats(w http.ResponseWriter, r *http.Request) {
	var stats adminStats
	if found, err := a.cache().Get(r.Context(), statsCacheKey, &stats); err != nil {
		a.Logger.Warn().Err(err).Msg("stats cache read failed")
	} else if found {
		a.json(w, http.StatusOK, stats)
		return
	}

	stats, err := a.buildStats(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if a.StatsCacheTTL > 0 {
		if err := a.cache().Set(r.Context(), statsCacheKey, stats, a.StatsCacheTTL); err != nil {
			a.Logger.Warn().Err(err).Msg("stats cache write failed")
		}
	}
	a.json(w, http.StatusOK, stats)
}

func (a *App) buildStats(ctx context.Context) (adminStats, error) {
	var stats adminStats
	days, err := a.Ledger.UsageReport(ctx, 7)
	if err != nil {
		return stats, err
	}
	summary, err := a.Stats.Summary(ctx)
	if err != nil {
		return stats, err
	}

	stats.Last7Days = make([]dayStatsDTO, 0, len(days))
	for _, d := range days {
		stats.Last7Days = append(stats.Last7Days, toDayStats(d, false))
	}
	stats.Today = toDayStats(days[len(days)-1], true)

	stats.Users.Total = summary.TotalUsers
	stats.Users.WithCredits = summary.UsersWithCredits
	stats.Users.CompletedProfiles = summary.CompletedProfiles
	stats.Generations.Total = summary.TotalGenerations
	stats.Generations.Successful = summary.SuccessfulGenerations
	stats.Generations.SuccessRate = successRate(summary.SuccessfulGenerations, summary.TotalGenerations)
	return stats, nil
}

func toDayStats(d ledger.DayReport, withRemaining bool) dayStatsDTO {
	out := dayStatsDTO{
		Date:             d.Day,
		FreeCreditsUsed:  d.FreeCreditsUsed,
		FreeCreditsValue: billing.Dollars(d.FreeValueCents).InexactFloat64(),
		UniqueUsers:      d.UniqueUsers,
	}
	if withRemaining {
		remaining := billing.Dollars(d.RemainingFreeCap).InexactFloat64()
		out.RemainingFreeValue = &remaining
	}
	return out
}

// successRate renders successful/total as a percentage with one decimal.
func successRate(successful, total int) string {
	if total == 0 {
		return "0"
	}
	return decimal.NewFromInt(int64(successful)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		StringFixed(1)
}
