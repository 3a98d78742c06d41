package engagement

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

// CelebrationPolicy controls when unlock celebrations are surfaced:
//   - nothing is shown between QuietStart and QuietEnd (local time)
//   - at most MaxPerBatch celebrations are returned at once, oldest first
type CelebrationPolicy struct {
	QuietStart  string `toml:"quiet_start"` // "HH:MM"
	QuietEnd    string `toml:"quiet_end"`
	MaxPerBatch int    `toml:"max_per_batch"`
}

// DefaultCelebrationPolicy keeps the night quiet.
func DefaultCelebrationPolicy() CelebrationPolicy {
	return CelebrationPolicy{QuietStart: "22:00", QuietEnd: "08:00", MaxPerBatch: 5}
}

// CelebrationKind says what was unlocked.
type CelebrationKind string

const (
	CelebrateTrophy CelebrationKind = "trophy"
	CelebrateBadge  CelebrationKind = "badge"
)

// Celebration is an unlock the user has not been shown yet.
type Celebration struct {
	Kind       CelebrationKind   `json:"kind"`
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Tier       domain.TrophyTier `json:"tier,omitempty"`
	UnlockedAt time.Time         `json:"unlockedAt"`
}

// PendingCelebrations lists unnotified trophy tiers and unique badges.
// During quiet hours the list is empty.
func PendingCelebrations(s domain.GamificationState, policy CelebrationPolicy, now time.Time, loc *time.Location) []Celebration {
	if isQuietHour(policy, now.In(loc)) {
		return nil
	}

	var out []Celebration
	for _, t := range s.Trophies {
		if t.Notified || t.CurrentTier.Ordinal() == 0 {
			continue
		}
		def, ok := trophyByID(t.TrophyID)
		if !ok {
			continue
		}
		out = append(out, Celebration{
			Kind:       CelebrateTrophy,
			ID:         t.TrophyID,
			Name:       def.Name,
			Tier:       t.CurrentTier,
			UnlockedAt: t.TierUnlocks[t.CurrentTier],
		})
	}

	names := make(map[string]string)
	for _, def := range AllUniqueBadges() {
		names[def.ID] = def.Name
	}
	for _, b := range s.UniqueBadges {
		if b.Notified {
			continue
		}
		name, ok := names[b.BadgeID]
		if !ok {
			continue
		}
		out = append(out, Celebration{Kind: CelebrateBadge, ID: b.BadgeID, Name: name, UnlockedAt: b.UnlockedAt})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	if policy.MaxPerBatch > 0 && len(out) > policy.MaxPerBatch {
		out = out[:policy.MaxPerBatch]
	}
	return out
}

// AcknowledgeCelebrations marks the given celebrations as shown.
func AcknowledgeCelebrations(s domain.GamificationState, shown []Celebration) Patch {
	var p Patch
	for _, c := range shown {
		switch c.Kind {
		case CelebrateTrophy:
			if t, ok := s.Trophy(c.ID); ok && !t.Notified {
				t = t.Clone()
				t.Notified = true
				p.Trophies = append(p.Trophies, t)
			}
		case CelebrateBadge:
			for _, b := range s.UniqueBadges {
				if b.BadgeID == c.ID && !b.Notified {
					b.Notified = true
					p.UniqueBadges = append(p.UniqueBadges, b)
				}
			}
		}
	}
	return p
}

// isQuietHour returns true if t falls within the quiet window.
func isQuietHour(policy CelebrationPolicy, t time.Time) bool {
	if policy.QuietStart == "" || policy.QuietEnd == "" {
		return false
	}
	startHour, startMin := parseHHMM(policy.QuietStart)
	endHour, endMin := parseHHMM(policy.QuietEnd)

	timeMinutes := t.Hour()*60 + t.Minute()
	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	if startMinutes > endMinutes {
		// Wraps midnight: e.g., 22:00 – 08:00
		return timeMinutes >= startMinutes || timeMinutes < endMinutes
	}
	return timeMinutes >= startMinutes && timeMinutes < endMinutes
}

// parseHHMM parses "HH:MM" into hour and minute.
func parseHHMM(s string) (int, int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m
}
