package domain

import "time"

// DayKeyLayout formats the calendar day key of a DailyUsage record (UTC).
const DayKeyLayout = "2006-01-02"

// DailyUsage aggregates free-tier consumption for one calendar day. Values
// are tracked in cents. PendingCents is capacity held by reservations that
// have not been settled yet.
type DailyUsage struct {
	Day          string
	CreditsUsed  int
	ValueCents   int64
	PendingCents int64
	UniqueUsers  []string
	UpdatedAt    time.Time
}

// DayKey returns the usage key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// HasUser reports whether userID already used free credits that day.
func (u DailyUsage) HasUser(userID string) bool {
	for _, id := range u.UniqueUsers {
		if id == userID {
			return true
		}
	}
	return false
}
