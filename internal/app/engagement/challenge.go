package engagement

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// MaxChallenges bounds the stored challenge history.
const MaxChallenges = 50

// ChallengeRefresh is the outcome of one scheduler pass.
type ChallengeRefresh struct {
	Generated []domain.Challenge
	Expired   []domain.Challenge
}

// Changed returns every challenge the pass created or modified.
func (r ChallengeRefresh) Changed() []domain.Challenge {
	out := make([]domain.Challenge, 0, len(r.Generated)+len(r.Expired))
	out = append(out, r.Generated...)
	return append(out, r.Expired...)
}

// RefreshChallenges generates the daily and weekly sets when the current
// window has no live challenge of that type, then expires every active
// challenge past its deadline. Trimming is left to the reducer.
func RefreshChallenges(list []domain.Challenge, weeklyDays int, now time.Time, loc *time.Location) ChallengeRefresh {
	var r ChallengeRefresh

	existing := make(map[string]bool, len(list))
	for _, c := range list {
		existing[c.ID] = true
	}

	if len(windowChallenges(list, domain.ChallengeDaily, now, loc)) == 0 {
		for _, c := range generateChallenges(DailyTemplates(), weeklyDays, now, loc) {
			if !existing[c.ID] {
				r.Generated = append(r.Generated, c)
			}
		}
	}
	if len(windowChallenges(list, domain.ChallengeWeekly, now, loc)) == 0 {
		for _, c := range generateChallenges(WeeklyTemplates(), weeklyDays, now, loc) {
			if !existing[c.ID] {
				r.Generated = append(r.Generated, c)
			}
		}
	}

	for _, c := range list {
		if c.Status == domain.ChallengeActive && now.After(c.ExpiresAt) {
			c.Status = domain.ChallengeExpired
			r.Expired = append(r.Expired, c)
		}
	}
	return r
}

func generateChallenges(tpls []ChallengeTemplate, weeklyDays int, now time.Time, loc *time.Location) []domain.Challenge {
	day := dayOf(now, loc)
	out := make([]domain.Challenge, 0, len(tpls))
	for _, tpl := range tpls {
		target := tpl.Target(weeklyDays)
		c := domain.Challenge{
			Type:        tpl.Type,
			Title:       tpl.Title,
			Description: fmt.Sprintf(tpl.Description, target),
			Target:      target,
			XPReward:    tpl.XPReward,
			Status:      domain.ChallengeActive,
			CreatedAt:   now,
		}
		if tpl.Type == domain.ChallengeDaily {
			c.ID = tpl.ID + "_" + day
			c.ExpiresAt = endOfDay(now, loc)
		} else {
			c.ID = tpl.ID + "_week_" + day
			c.ExpiresAt = endOfWeek(now, loc)
		}
		out = append(out, c)
	}
	return out
}

// windowChallenges returns the live (active or completed) challenges of typ
// created in the current day or week.
func windowChallenges(list []domain.Challenge, typ domain.ChallengeType, now time.Time, loc *time.Location) []domain.Challenge {
	start := startOfDay(now, loc)
	if typ == domain.ChallengeWeekly {
		start = startOfWeek(now, loc)
	}
	var out []domain.Challenge
	for _, c := range list {
		if c.Type != typ || c.Status == domain.ChallengeExpired {
			continue
		}
		if c.CreatedAt.Before(start) || now.After(c.ExpiresAt) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// CurrentChallenge finds the live challenge of the current window generated
// from templateID.
func CurrentChallenge(list []domain.Challenge, typ domain.ChallengeType, templateID string, now time.Time, loc *time.Location) (domain.Challenge, bool) {
	for _, c := range windowChallenges(list, typ, now, loc) {
		if strings.HasPrefix(c.ID, templateID+"_") {
			return c, true
		}
	}
	return domain.Challenge{}, false
}

// UpdateChallengeProgress sets progress clamped to [0, target]. The second
// return value is true only on the update that completes the challenge.
// Completed and expired challenges are returned unchanged.
func UpdateChallengeProgress(c domain.Challenge, progress int, now time.Time) (domain.Challenge, bool) {
	if c.Status != domain.ChallengeActive || now.After(c.ExpiresAt) {
		return c, false
	}
	c.Progress = min(max(progress, 0), c.Target)
	if c.Progress >= c.Target {
		c.Status = domain.ChallengeCompleted
		at := now
		c.CompletedAt = &at
		return c, true
	}
	return c, false
}

// CompleteChallenge forces progress to target.
func CompleteChallenge(c domain.Challenge, now time.Time) (domain.Challenge, bool) {
	return UpdateChallengeProgress(c, c.Target, now)
}

// trimChallenges sorts newest first and keeps MaxChallenges entries.
func trimChallenges(list []domain.Challenge) []domain.Challenge {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > MaxChallenges {
		list = list[:MaxChallenges]
	}
	return list
}

// ─── Projection ─────────────────────────────────────────────────────────────

// ChallengeSummary lists the current daily and weekly challenges.
type ChallengeSummary struct {
	Daily           []domain.Challenge `json:"daily"`
	Weekly          []domain.Challenge `json:"weekly"`
	CompletedToday  int                `json:"completedToday"`
	CompletedWeekly int                `json:"completedWeekly"`
	DailyProgress   int                `json:"dailyProgress"`
	WeeklyProgress  int                `json:"weeklyProgress"`
}

// SummarizeChallenges builds the challenge projection.
func SummarizeChallenges(list []domain.Challenge, now time.Time, loc *time.Location) ChallengeSummary {
	sum := ChallengeSummary{
		Daily:  windowChallenges(list, domain.ChallengeDaily, now, loc),
		Weekly: windowChallenges(list, domain.ChallengeWeekly, now, loc),
	}
	sum.CompletedToday = countCompleted(sum.Daily)
	sum.CompletedWeekly = countCompleted(sum.Weekly)
	sum.DailyProgress = percentOf(sum.CompletedToday, len(sum.Daily))
	sum.WeeklyProgress = percentOf(sum.CompletedWeekly, len(sum.Weekly))
	return sum
}

func countCompleted(list []domain.Challenge) int {
	n := 0
	for _, c := range list {
		if c.Status == domain.ChallengeCompleted {
			n++
		}
	}
	return n
}

func percentOf(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
