package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Trophy Tier Tests ──────────────────────────────────────────────────────

func TestTrophyTier_Ordinal(t *testing.T) {
	tests := []struct {
		tier TrophyTier
		want int
	}{
		{TierNone, 0},
		{TierBronze, 1},
		{TierSilver, 2},
		{TierGold, 3},
		{TrophyTier("platinum"), 0},
		{TrophyTier(""), 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Ordinal())
		})
	}
}

func TestUnlockableTiers_Ascending(t *testing.T) {
	for i := 1; i < len(UnlockableTiers); i++ {
		assert.Greater(t, UnlockableTiers[i].Ordinal(), UnlockableTiers[i-1].Ordinal())
	}
}

// ─── Aggregate Tests ────────────────────────────────────────────────────────

func TestDefaultState(t *testing.T) {
	s := DefaultState()
	assert.Equal(t, CurrentSchemaVersion, s.SchemaVersion)
	assert.Equal(t, 1, s.XP.CurrentLevel)
	assert.Equal(t, 100, s.XP.XPToNextLevel)
	assert.Empty(t, s.Streak.LastActivityDate)
	assert.NotNil(t, s.Trophies)
	assert.NotNil(t, s.WorkoutModalities)
}

func TestClone_DoesNotShareMemory(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s := DefaultState()
	s.Trophies = []UserTrophy{{
		TrophyID:    "streak_fire",
		CurrentTier: TierBronze,
		TierUnlocks: map[TrophyTier]time.Time{TierBronze: now},
	}}
	s.Challenges = []Challenge{{ID: "daily_workout_2024-03-01", CompletedAt: &now}}
	s.Activities = []ActivityItem{{ID: "a1", Metadata: map[string]any{"k": "v"}}}
	s.WorkoutModalities = []string{"run"}

	c := s.Clone()
	c.Trophies[0].TierUnlocks[TierSilver] = now
	c.Trophies[0].CurrentTier = TierSilver
	*c.Challenges[0].CompletedAt = now.Add(time.Hour)
	c.Activities[0].Metadata["k"] = "changed"
	c.WorkoutModalities[0] = "swim"

	assert.Len(t, s.Trophies[0].TierUnlocks, 1)
	assert.Equal(t, TierBronze, s.Trophies[0].CurrentTier)
	assert.Equal(t, now, *s.Challenges[0].CompletedAt)
	assert.Equal(t, "v", s.Activities[0].Metadata["k"])
	assert.Equal(t, "run", s.WorkoutModalities[0])
}

func TestState_JSONFlattensCounters(t *testing.T) {
	s := DefaultState()
	s.TotalWorkoutsCompleted = 4
	s.WorkoutModalities = []string{"run"}

	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.EqualValues(t, 4, m["totalWorkoutsCompleted"])
	assert.Contains(t, m, "workoutModalities")
	assert.NotContains(t, m, "Counters")
}

func TestState_Lookups(t *testing.T) {
	s := DefaultState()
	s.UniqueBadges = []UniqueBadge{{BadgeID: "first_workout"}}
	s.Trophies = []UserTrophy{{TrophyID: "volume_marathon", CurrentTier: TierSilver}}
	s.WorkoutModalities = []string{"yoga"}

	assert.True(t, s.HasUniqueBadge("first_workout"))
	assert.False(t, s.HasUniqueBadge("comeback"))
	assert.True(t, s.HasModality("yoga"))

	tr, ok := s.Trophy("volume_marathon")
	require.True(t, ok)
	assert.Equal(t, TierSilver, tr.CurrentTier)
	_, ok = s.Trophy("missing")
	assert.False(t, ok)
}
