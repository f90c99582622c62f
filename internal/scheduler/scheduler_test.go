package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
)

func TestSlug_CollapsesWhitespaceAndCase(t *testing.T) {
	require.Equal(t, "acme_co", Slug("  Acme   Co "))
}

func TestNextFireTime_Minutes(t *testing.T) {
	after := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next := nextFireTime(model.SchedulerConfig{Interval: "minutes", Value: 15}, after)
	require.Equal(t, after.Add(15*time.Minute), next)
}

func TestNextFireTime_DailyLaterToday(t *testing.T) {
	after := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	next := nextFireTime(model.SchedulerConfig{Interval: "daily", Time: "09:00"}, after)
	require.Equal(t, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_DailyRollsToTomorrow(t *testing.T) {
	after := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	next := nextFireTime(model.SchedulerConfig{Interval: "daily", Time: "09:00"}, after)
	require.Equal(t, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC), next)
}
