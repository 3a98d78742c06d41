package engagement

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// MaxGoals bounds the stored goal list.
const MaxGoals = 20

// GoalRefresh is the outcome of a goal pass.
type GoalRefresh struct {
	Changed   []domain.Goal
	Completed []domain.Goal // subset of Changed that completed in this pass
}

func (r *GoalRefresh) add(g domain.Goal, completed bool) {
	r.Changed = append(r.Changed, g)
	if completed {
		r.Completed = append(r.Completed, g)
	}
}

// WeeklyGoalID is the id of the workout goal for t's ISO week.
func WeeklyGoalID(t time.Time, loc *time.Location) string {
	return weeklyWorkoutGoal.Prefix + isoWeek(t, loc)
}

// MonthlyGoalID is the id of the workout goal for t's month.
func MonthlyGoalID(t time.Time, loc *time.Location) string {
	return monthlyWorkoutGoal.Prefix + monthKey(t, loc)
}

// NextStreakMilestone returns the smallest milestone above current.
func NextStreakMilestone(current int) (int, bool) {
	for _, m := range StreakGoalMilestones {
		if m > current {
			return m, true
		}
	}
	return 0, false
}

// RefreshGoals resyncs streak goals with the live streak and adds the
// current week, month and streak goals when they are missing. Unrelated
// goals are left untouched.
func RefreshGoals(goals []domain.Goal, weeklyDays, currentStreak int, now time.Time, loc *time.Location) GoalRefresh {
	var r GoalRefresh

	existing := make(map[string]bool, len(goals))
	for _, g := range goals {
		existing[g.ID] = true
		if !isStreakGoal(g.ID) || g.Status != domain.GoalActive {
			continue
		}
		updated, completed := setGoalProgress(g, currentStreak, now)
		if updated.Progress != g.Progress || completed {
			r.add(updated, completed)
		}
	}

	if weeklyDays > 0 {
		if id := WeeklyGoalID(now, loc); !existing[id] {
			r.add(newGoal(weeklyWorkoutGoal, id, weeklyDays, 0, now), false)
		}
		if id := MonthlyGoalID(now, loc); !existing[id] {
			r.add(newGoal(monthlyWorkoutGoal, id, weeklyDays*4, 0, now), false)
		}
	}

	if next, ok := NextStreakMilestone(currentStreak); ok {
		id := streakGoal.Prefix + strconv.Itoa(next)
		if !existing[id] {
			r.add(newGoal(streakGoal, id, next, currentStreak, now), false)
		}
	}
	return r
}

// AdvanceWorkoutGoals adds one workout to the current weekly and monthly
// workout goals.
func AdvanceWorkoutGoals(goals []domain.Goal, now time.Time, loc *time.Location) GoalRefresh {
	var r GoalRefresh
	ids := map[string]bool{
		WeeklyGoalID(now, loc):  true,
		MonthlyGoalID(now, loc): true,
	}
	for _, g := range goals {
		if !ids[g.ID] || g.Status != domain.GoalActive {
			continue
		}
		updated, completed := setGoalProgress(g, g.Progress+1, now)
		r.add(updated, completed)
	}
	return r
}

// IsMonthlyWorkoutGoal reports whether id is a monthly workout goal.
func IsMonthlyWorkoutGoal(id string) bool {
	return strings.HasPrefix(id, monthlyWorkoutGoal.Prefix)
}

func isStreakGoal(id string) bool {
	return strings.HasPrefix(id, streakGoal.Prefix)
}

func newGoal(tpl GoalTemplate, id string, target, progress int, now time.Time) domain.Goal {
	g := domain.Goal{
		ID:          id,
		Title:       tpl.Title,
		Description: fmt.Sprintf(tpl.Description, target),
		Category:    tpl.Category,
		Target:      target,
		Unit:        tpl.Unit,
		Status:      domain.GoalActive,
		CreatedAt:   now,
	}
	g.Progress = min(max(progress, 0), target)
	return g
}

// setGoalProgress clamps progress and completes the goal the first time it
// reaches target. Completed goals are returned unchanged.
func setGoalProgress(g domain.Goal, progress int, now time.Time) (domain.Goal, bool) {
	if g.Status != domain.GoalActive {
		return g, false
	}
	g.Progress = min(max(progress, 0), g.Target)
	if g.Progress >= g.Target {
		g.Status = domain.GoalCompleted
		at := now
		g.CompletedAt = &at
		return g, true
	}
	return g, false
}

// trimGoals sorts newest first and keeps MaxGoals entries.
func trimGoals(list []domain.Goal) []domain.Goal {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if len(list) > MaxGoals {
		list = list[:MaxGoals]
	}
	return list
}

// OverallGoalProgress is the rounded mean completion percent of active goals.
func OverallGoalProgress(goals []domain.Goal) int {
	var (
		total float64
		n     int
	)
	for _, g := range goals {
		if g.Status != domain.GoalActive || g.Target <= 0 {
			continue
		}
		total += math.Min(100, float64(g.Progress)/float64(g.Target)*100)
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Round(total / float64(n)))
}

// ─── Projection ─────────────────────────────────────────────────────────────

// GoalSummary is the goal list projection.
type GoalSummary struct {
	Active          []domain.Goal                         `json:"active"`
	Completed       []domain.Goal                         `json:"completed"`
	ByCategory      map[domain.GoalCategory][]domain.Goal `json:"byCategory"`
	OverallProgress int                                   `json:"overallProgress"`
}

// SummarizeGoals builds the goal projection.
func SummarizeGoals(goals []domain.Goal) GoalSummary {
	sum := GoalSummary{
		Active:     []domain.Goal{},
		Completed:  []domain.Goal{},
		ByCategory: make(map[domain.GoalCategory][]domain.Goal),
	}
	for _, g := range goals {
		switch g.Status {
		case domain.GoalActive:
			sum.Active = append(sum.Active, g)
		case domain.GoalCompleted:
			sum.Completed = append(sum.Completed, g)
		}
		sum.ByCategory[g.Category] = append(sum.ByCategory[g.Category], g)
	}
	sum.OverallProgress = OverallGoalProgress(goals)
	return sum
}
