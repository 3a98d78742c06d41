// Package engagement implements the fitquest gamification engines.
// Every engine is a pure function of the aggregate and the current time;
// the Service composes them and is the only writer of a user's state.
package engagement

import (
	"fmt"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// StreakMilestone is a streak length that pays a one-time XP bonus on the
// day it is reached.
type StreakMilestone struct {
	Days     int
	XPReward int
}

// streakMilestones are paid when currentStreak lands exactly on Days.
var streakMilestones = []StreakMilestone{
	{Days: 7, XPReward: RewardStreak7},
	{Days: 30, XPReward: RewardStreak30},
	{Days: 100, XPReward: RewardStreak100},
	{Days: 365, XPReward: RewardStreak365},
}

// ApplyStreak advances the streak for an activity on today (YYYY-MM-DD).
// The second return value is false for a same-day re-entry, where the
// streak is returned unchanged.
func ApplyStreak(s domain.StreakData, today string) (domain.StreakData, bool) {
	switch {
	case s.LastActivityDate == "":
		// First activity ever
		s.CurrentStreak = 1
		s.TotalActiveDays = 1

	case s.LastActivityDate == today:
		return s, false

	case daysBetween(s.LastActivityDate, today) == 1:
		s.CurrentStreak++
		s.TotalActiveDays++

	default:
		// Gap of more than one day resets the run
		s.CurrentStreak = 1
		s.TotalActiveDays++
	}

	s.LastActivityDate = today
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s, true
}

// StreakAtRisk is true when the last activity was yesterday: today is the
// last chance to keep the run alive.
func StreakAtRisk(s domain.StreakData, today string) bool {
	return s.LastActivityDate != "" && daysBetween(s.LastActivityDate, today) == 1
}

// StreakLost is true when the stored streak can no longer be extended.
func StreakLost(s domain.StreakData, today string) bool {
	return s.LastActivityDate != "" && s.CurrentStreak > 0 && daysBetween(s.LastActivityDate, today) > 1
}

// MilestoneReached returns the milestone the streak lands on, if any.
func MilestoneReached(currentStreak int) (StreakMilestone, bool) {
	for _, m := range streakMilestones {
		if m.Days == currentStreak {
			return m, true
		}
	}
	return StreakMilestone{}, false
}

// StreakSummary is the read-only streak projection.
type StreakSummary struct {
	domain.StreakData
	IsActiveToday         bool `json:"isActiveToday"`
	AtRisk                bool `json:"atRisk"`
	Lost                  bool `json:"lost"`
	DaysSinceLastActivity int  `json:"daysSinceLastActivity"` // -1 before the first activity
}

// SummarizeStreak builds the streak projection for today.
func SummarizeStreak(s domain.StreakData, today string) StreakSummary {
	sum := StreakSummary{
		StreakData:            s,
		AtRisk:                StreakAtRisk(s, today),
		Lost:                  StreakLost(s, today),
		DaysSinceLastActivity: -1,
	}
	if s.LastActivityDate != "" {
		sum.DaysSinceLastActivity = daysBetween(s.LastActivityDate, today)
		sum.IsActiveToday = sum.DaysSinceLastActivity == 0
	}
	return sum
}

// ─── Calendar Helpers ───────────────────────────────────────────────────────

// dayOf returns the calendar day of t in loc as YYYY-MM-DD.
func dayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.DateLayout)
}

// daysBetween returns the number of calendar days from a to b. Unparseable
// dates are treated as far apart so they never extend a streak.
func daysBetween(a, b string) int {
	ta, err := time.Parse(domain.DateLayout, a)
	if err != nil {
		return 1 << 20
	}
	tb, err := time.Parse(domain.DateLayout, b)
	if err != nil {
		return 1 << 20
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// startOfDay returns local midnight of t's day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// endOfDay returns 23:59:59.999 of t's day in loc.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// startOfWeek returns Monday 00:00 of t's week in loc.
func startOfWeek(t time.Time, loc *time.Location) time.Time {
	d := startOfDay(t, loc)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

// endOfWeek returns the upcoming Sunday 23:59:59.999 in loc.
func endOfWeek(t time.Time, loc *time.Location) time.Time {
	return startOfWeek(t, loc).AddDate(0, 0, 7).Add(-time.Millisecond)
}

// isoWeek returns "YYYY-Www" for the given time.
func isoWeek(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// monthKey returns "YYYY-MM" for the given time.
func monthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}
