package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QSelectUserByEmail":             QSelectUserByEmail,
		"QSelectUserByID":                QSelectUserByID,
		"QInsertUser":                    QInsertUser,
		"QSetUserBalance":                QSetUserBalance,
		"QAddUserCredits":                QAddUserCredits,
		"QCompleteUserProfile":           QCompleteUserProfile,
		"QInsertGeneration":              QInsertGeneration,
		"QListGenerationsForUser":        QListGenerationsForUser,
		"QSelectGenerationByReservation": QSelectGenerationByReservation,
		"QEnsureDailyUsage":              QEnsureDailyUsage,
		"QIncrementDailyUsage":           QIncrementDailyUsage,
		"QListDailyUsageRange":           QListDailyUsageRange,
		"QDebitBalance":                  QDebitBalance,
		"QRefundBalance":                 QRefundBalance,
		"QHoldFreeCapacity":              QHoldFreeCapacity,
		"QCommitFreeCapacity":            QCommitFreeCapacity,
		"QReleaseFreeCapacity":           QReleaseFreeCapacity,
		"QInsertReservation":             QInsertReservation,
		"QSettleReservation":             QSettleReservation,
		"QSelectReservation":             QSelectReservation,
		"QListStaleReservations":         QListStaleReservations,
		"QInsertPayment":                 QInsertPayment,
		"QStatsSummary":                  QStatsSummary,
	}
	seen := make(map[string]string, len(queries))
	for name, query := range queries {
		first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(query), "\n", 2)[0])
		m := markerPattern.FindStringSubmatch(first)
		if m == nil {
			t.Fatalf("%s: missing marker, first line %q", name, first)
		}
		if prev, dup := seen[m[1]]; dup {
			t.Fatalf("%s reuses marker %s from %s", name, m[1], prev)
		}
		seen[m[1]] = name
	}
}
