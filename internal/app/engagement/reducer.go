package engagement

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// MaxActivities bounds the activity feed.
const MaxActivities = 50

// XPGrant credits experience and logs it in the activity feed.
type XPGrant struct {
	Amount   int
	Type     domain.ActivityType
	Title    string
	Metadata map[string]any
}

// CounterDelta changes activity counters. Zero fields leave counters as is.
type CounterDelta struct {
	Workouts      int
	EarlyWorkouts int
	NightWorkouts int
	DietDays      int
	PerfectWeeks  int
	PerfectMonths int
	Modality      string
	// ConsecutivePerfectWeeks overwrites the run length when set.
	ConsecutivePerfectWeeks *int
}

// Patch is what an engine returns. Entity lists are upserts keyed by id, so
// a patch only replaces the entities it actually touched.
type Patch struct {
	Streak             *domain.StreakData
	Counters           CounterDelta
	LastDietDate       string
	WeeklyTrainingDays int
	XP                 []XPGrant
	Trophies           []domain.UserTrophy
	UniqueBadges       []domain.UniqueBadge
	Challenges         []domain.Challenge
	Goals              []domain.Goal
	Activities         []domain.ActivityItem
}

// Merge appends q's changes after p's.
func (p Patch) Merge(q Patch) Patch {
	if q.Streak != nil {
		p.Streak = q.Streak
	}
	p.Counters.Workouts += q.Counters.Workouts
	p.Counters.EarlyWorkouts += q.Counters.EarlyWorkouts
	p.Counters.NightWorkouts += q.Counters.NightWorkouts
	p.Counters.DietDays += q.Counters.DietDays
	p.Counters.PerfectWeeks += q.Counters.PerfectWeeks
	p.Counters.PerfectMonths += q.Counters.PerfectMonths
	if q.Counters.Modality != "" {
		p.Counters.Modality = q.Counters.Modality
	}
	if q.Counters.ConsecutivePerfectWeeks != nil {
		p.Counters.ConsecutivePerfectWeeks = q.Counters.ConsecutivePerfectWeeks
	}
	if q.LastDietDate != "" {
		p.LastDietDate = q.LastDietDate
	}
	if q.WeeklyTrainingDays != 0 {
		p.WeeklyTrainingDays = q.WeeklyTrainingDays
	}
	p.XP = append(p.XP, q.XP...)
	p.Trophies = append(p.Trophies, q.Trophies...)
	p.UniqueBadges = append(p.UniqueBadges, q.UniqueBadges...)
	p.Challenges = append(p.Challenges, q.Challenges...)
	p.Goals = append(p.Goals, q.Goals...)
	p.Activities = append(p.Activities, q.Activities...)
	return p
}

// Empty reports whether applying p would change nothing.
func (p Patch) Empty() bool {
	c := p.Counters
	return p.Streak == nil && c == (CounterDelta{}) && p.LastDietDate == "" &&
		p.WeeklyTrainingDays == 0 && len(p.XP) == 0 && len(p.Trophies) == 0 &&
		len(p.UniqueBadges) == 0 && len(p.Challenges) == 0 && len(p.Goals) == 0 &&
		len(p.Activities) == 0
}

// ReduceResult reports side effects of a reduction.
type ReduceResult struct {
	XPGained   int
	LevelUps   []int // each level reached, ascending
	Activities []domain.ActivityItem
}

// Reduce applies p to s and returns the new state. s is not modified.
// Level fields are recomputed from total XP; lists are re-bounded.
func Reduce(s domain.GamificationState, p Patch, now time.Time) (domain.GamificationState, ReduceResult) {
	var res ReduceResult
	s = s.Clone()

	if p.Streak != nil {
		s.Streak = *p.Streak
	}

	c := p.Counters
	s.TotalWorkoutsCompleted += c.Workouts
	s.EarlyWorkouts += c.EarlyWorkouts
	s.NightWorkouts += c.NightWorkouts
	s.DietDaysFollowed += c.DietDays
	s.PerfectWeeks += c.PerfectWeeks
	s.PerfectMonths += c.PerfectMonths
	if c.Modality != "" && !s.HasModality(c.Modality) {
		s.WorkoutModalities = append(s.WorkoutModalities, c.Modality)
	}
	if c.ConsecutivePerfectWeeks != nil {
		s.ConsecutivePerfectWeeks = *c.ConsecutivePerfectWeeks
	}
	if p.LastDietDate != "" {
		s.LastDietDate = p.LastDietDate
	}
	if p.WeeklyTrainingDays != 0 {
		s.WeeklyTrainingDays = p.WeeklyTrainingDays
	}

	var feed []domain.ActivityItem
	for _, g := range p.XP {
		// Totals saturate instead of wrapping.
		g.Amount = min(g.Amount, math.MaxInt-s.XP.TotalXP)
		if g.Amount <= 0 {
			continue
		}
		before := LevelOf(s.XP.TotalXP)
		after := LevelOf(s.XP.TotalXP + g.Amount)
		s.XP = after.XPData()
		res.XPGained += g.Amount

		item := domain.ActivityItem{
			ID:          uuid.NewString(),
			Type:        g.Type,
			Title:       g.Title,
			Description: fmt.Sprintf("+%d XP", g.Amount),
			XPEarned:    g.Amount,
			Timestamp:   now,
			Metadata:    g.Metadata,
		}
		if after.CurrentLevel > before.CurrentLevel {
			for lvl := before.CurrentLevel + 1; lvl <= after.CurrentLevel; lvl++ {
				res.LevelUps = append(res.LevelUps, lvl)
			}
			md := map[string]any{"reason": g.Title, "level": after.CurrentLevel}
			for k, v := range g.Metadata {
				md[k] = v
			}
			item.Type = domain.ActivityLevelUp
			item.Title = fmt.Sprintf("Reached level %d!", after.CurrentLevel)
			item.Metadata = md
		}
		feed = append(feed, item)
	}
	feed = append(feed, p.Activities...)

	s.Trophies = upsertTrophies(s.Trophies, p.Trophies)

	for _, b := range p.UniqueBadges {
		replaced := false
		for i := range s.UniqueBadges {
			if s.UniqueBadges[i].BadgeID == b.BadgeID {
				// Only the notified flag may change on an unlocked badge
				s.UniqueBadges[i].Notified = s.UniqueBadges[i].Notified || b.Notified
				replaced = true
				break
			}
		}
		if !replaced {
			s.UniqueBadges = append(s.UniqueBadges, b)
		}
	}

	if len(p.Challenges) > 0 {
		s.Challenges = trimChallenges(upsertChallenges(s.Challenges, p.Challenges))
	}
	if len(p.Goals) > 0 {
		s.Goals = trimGoals(upsertGoals(s.Goals, p.Goals))
	}

	if len(feed) > 0 {
		// Newest first: the last item of this patch ends up on top
		merged := make([]domain.ActivityItem, 0, len(feed)+len(s.Activities))
		for i := len(feed) - 1; i >= 0; i-- {
			merged = append(merged, feed[i])
		}
		merged = append(merged, s.Activities...)
		if len(merged) > MaxActivities {
			merged = merged[:MaxActivities]
		}
		s.Activities = merged
		res.Activities = feed
	}

	if !p.Empty() {
		s.LastUpdated = now
	}
	return s, res
}

func upsertTrophies(list, changes []domain.UserTrophy) []domain.UserTrophy {
	for _, ch := range changes {
		found := false
		for i := range list {
			if list[i].TrophyID == ch.TrophyID {
				list[i] = ch.Clone()
				found = true
				break
			}
		}
		if !found {
			list = append(list, ch.Clone())
		}
	}
	return list
}

func upsertChallenges(list, changes []domain.Challenge) []domain.Challenge {
	idx := make(map[string]int, len(list))
	for i, c := range list {
		idx[c.ID] = i
	}
	for _, ch := range changes {
		if i, ok := idx[ch.ID]; ok {
			list[i] = ch
			continue
		}
		idx[ch.ID] = len(list)
		list = append(list, ch)
	}
	return list
}

func upsertGoals(list, changes []domain.Goal) []domain.Goal {
	idx := make(map[string]int, len(list))
	for i, g := range list {
		idx[g.ID] = i
	}
	for _, ch := range changes {
		if i, ok := idx[ch.ID]; ok {
			list[i] = ch
			continue
		}
		idx[ch.ID] = len(list)
		list = append(list, ch)
	}
	return list
}
