package engagement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/myeasy-ai/fitquest/internal/app/autosave"
	"github.com/myeasy-ai/fitquest/internal/domain"
	"github.com/myeasy-ai/fitquest/internal/infra/metrics"
)

// Template ids the entry points drive directly.
const (
	tplDailyWorkout      = "daily_workout"
	tplDailyDiet         = "daily_diet"
	tplWeeklyWorkouts    = "weekly_workouts"
	tplWeeklyConsistency = "weekly_consistency"
	tplWeeklyPerfect     = "weekly_perfect"
)

// Workout hours that count as early and night sessions.
const (
	earlyBeforeHour = 7
	nightFromHour   = 21
)

// DefaultWeeklyTrainingDays is used until the profile sets its own value.
const DefaultWeeklyTrainingDays = 3

// Config tunes a Service.
type Config struct {
	Location           *time.Location
	WeeklyTrainingDays int
	SaveDebounce       time.Duration
	Clock              func() time.Time
	Logger             *slog.Logger
	Celebrations       CelebrationPolicy
}

// Workout describes one completed workout.
type Workout struct {
	Hour     *int   `json:"hour,omitempty"` // local hour 0-23
	Modality string `json:"modality,omitempty"`
}

// Outcome summarizes one entry-point call.
type Outcome struct {
	XPGained            int               `json:"xpGained"`
	LevelUps            []int             `json:"levelUps,omitempty"`
	Level               Level             `json:"level"`
	Streak              domain.StreakData `json:"streak"`
	StreakAdvanced      bool              `json:"streakAdvanced"`
	TrophyUnlocks       []TrophyUnlock    `json:"trophyUnlocks,omitempty"`
	BadgesUnlocked      []string          `json:"badgesUnlocked,omitempty"`
	ChallengesCompleted []string          `json:"challengesCompleted,omitempty"`
	GoalsCompleted      []string          `json:"goalsCompleted,omitempty"`
	Saved               bool              `json:"saved"`
}

// Service owns one user's GamificationState. Every mutation goes through it
// under a single lock; engines only compute patches.
type Service struct {
	userID string
	store  domain.StateStore
	saver  *autosave.AutoSaver
	cfg    Config
	log    *slog.Logger

	mu       sync.Mutex
	state    domain.GamificationState
	loaded   bool
	degraded bool
}

// NewService creates a service for userID. Call Load before use; entry
// points load lazily otherwise.
func NewService(userID string, store domain.StateStore, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.WeeklyTrainingDays <= 0 {
		cfg.WeeklyTrainingDays = DefaultWeeklyTrainingDays
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Celebrations == (CelebrationPolicy{}) {
		cfg.Celebrations = DefaultCelebrationPolicy()
	}
	log := cfg.Logger.With("component", "engagement", "user_id", userID)
	return &Service{
		userID: userID,
		store:  store,
		saver: autosave.New(userID, store,
			autosave.WithDebounce(cfg.SaveDebounce),
			autosave.WithLogger(cfg.Logger)),
		cfg:   cfg,
		log:   log,
		state: domain.DefaultState(),
	}
}

// UserID returns the owner of this service.
func (s *Service) UserID() string { return s.userID }

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Load reads the stored state, migrates it and refreshes rotating content.
// Store failures fall back to the default state and are only logged. The
// service then reports Degraded: nothing is written until a later read
// succeeds, and every mutation retries the read first.
func (s *Service) Load(ctx context.Context) error {
	if s.userID == "" {
		return domain.ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		s.log.Warn("load failed", "error", err, "degraded", s.degraded)
	}
	return nil
}

// loadLocked replaces the in-memory state with the stored one. When the
// store cannot be read, a state already in memory is kept as is; a first
// load installs the defaults and the service becomes degraded.
func (s *Service) loadLocked(ctx context.Context) error {
	st, err := s.store.Load(ctx, s.userID)
	switch {
	case err == nil:
		metrics.StateLoads.WithLabelValues("ok").Inc()
		s.saver.MarkSaved(st)
	case errors.Is(err, domain.ErrStateNotFound):
		metrics.StateLoads.WithLabelValues("not_found").Inc()
		st = domain.DefaultState()
	default:
		metrics.StateLoads.WithLabelValues("error").Inc()
		err = fmt.Errorf("%w: %w", domain.ErrStateUnavailable, err)
		if s.loaded {
			return err
		}
		s.install(domain.DefaultState())
		s.degraded = true
		s.saver.MarkSaved(s.state)
		return err
	}

	report := s.install(st)
	s.degraded = false
	if report.Applied() {
		// Live counters may already be past the tiers a legacy snapshot
		// carried.
		t := s.begin()
		t.checkTrophies(false)
	}
	s.saver.Observe(s.state)
	return nil
}

// install migrates st, makes it the current state and refreshes rotating
// content. Callers hold s.mu.
func (s *Service) install(st domain.GamificationState) MigrationReport {
	st, report := Migrate(st)
	if report.Applied() {
		metrics.Migrations.WithLabelValues(strconv.Itoa(report.FromVersion)).Inc()
		s.log.Info("state migrated",
			"from", report.FromVersion, "to", report.ToVersion, "badges", report.MigratedBadges)
	}
	// Stores may return absent lists and only persist total XP.
	st = normalizeShape(st, nil)
	if trophies, seeded := InitializeTrophies(st); seeded {
		st.Trophies = trophies
	}
	s.state = st
	s.loaded = true

	t := s.begin()
	t.refreshGoals()
	t.refreshChallenges()
	return report
}

// Degraded reports whether the state in memory is a fallback for a store
// that could not be read.
func (s *Service) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Refresh writes pending changes and reloads the state from storage. If the
// store cannot be read the current state is kept and ErrStateUnavailable is
// returned.
func (s *Service) Refresh(ctx context.Context) error {
	s.saver.Flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		s.log.Warn("refresh failed", "error", err)
		return err
	}
	return nil
}

// ForceSave writes pending changes now. A degraded service never saves.
func (s *Service) ForceSave(ctx context.Context) bool {
	if s.Degraded() {
		return false
	}
	return s.saver.Flush(ctx)
}

// Close flushes pending changes. The service must not be used afterwards.
func (s *Service) Close(ctx context.Context) bool {
	return s.saver.Close(ctx)
}

// SaveStatus reports the autosaver state.
func (s *Service) SaveStatus() autosave.Status {
	return s.saver.Status()
}

// ─── Entry Points ───────────────────────────────────────────────────────────

// RecordWorkoutCompleted applies a workout: streak, counters, XP, challenge
// completion, trophy check, badge check and goal refresh, in that order.
// The result is saved immediately.
func (s *Service) RecordWorkoutCompleted(ctx context.Context, w Workout) (Outcome, error) {
	if w.Hour != nil && (*w.Hour < 0 || *w.Hour > 23) {
		return Outcome{}, fmt.Errorf("%w: got %d", domain.ErrInvalidHour, *w.Hour)
	}

	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	t.refreshChallenges()

	priorLongest := s.state.Streak.LongestStreak
	firstWorkout := s.state.TotalWorkoutsCompleted == 0

	// Streak
	streak, advanced := ApplyStreak(s.state.Streak, t.today)
	t.out.StreakAdvanced = advanced

	// Counters
	delta := CounterDelta{Workouts: 1}
	if w.Hour != nil {
		switch {
		case *w.Hour < earlyBeforeHour:
			delta.EarlyWorkouts = 1
		case *w.Hour >= nightFromHour:
			delta.NightWorkouts = 1
		}
	}
	if m := normalizeModality(w.Modality); m != "" && !s.state.HasModality(m) {
		delta.Modality = m
	}

	// XP
	grant := XPGrant{Amount: RewardWorkoutCompleted, Type: domain.ActivityWorkoutCompleted, Title: "Workout completed"}
	if firstWorkout {
		grant.Amount += RewardFirstWorkout
		grant.Metadata = map[string]any{"firstWorkout": true}
	}
	grants := []XPGrant{grant}
	if m, ok := MilestoneReached(streak.CurrentStreak); ok && advanced {
		grants = append(grants, XPGrant{
			Amount:   m.XPReward,
			Type:     domain.ActivityStreakMilestone,
			Title:    fmt.Sprintf("%d day streak!", m.Days),
			Metadata: map[string]any{"days": m.Days},
		})
	}
	t.apply(Patch{Streak: &streak, Counters: delta, XP: grants})

	// Challenges
	t.advanceWorkoutChallenges(advanced)

	// Trophies and badges
	t.checkTrophies(true)
	t.checkBadges(priorLongest)

	// Goals
	t.advanceWorkoutGoals()
	t.refreshGoals()

	t.refreshChallenges()
	out := t.finish()
	degraded := s.degraded
	s.mu.Unlock()

	metrics.ActivitiesRecorded.WithLabelValues("workout").Inc()
	out.Saved = !degraded && s.saver.Flush(ctx)
	return out, nil
}

// RecordDietFollowed counts today as a diet day and completes the daily
// diet challenge. Repeating it on the same day changes nothing.
func (s *Service) RecordDietFollowed(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	t.refreshChallenges()
	priorLongest := s.state.Streak.LongestStreak

	if s.state.LastDietDate != t.today {
		t.apply(Patch{
			Counters:     CounterDelta{DietDays: 1},
			LastDietDate: t.today,
			Activities: []domain.ActivityItem{{
				ID:          uuid.NewString(),
				Type:        domain.ActivityDietFollowed,
				Title:       "Diet followed",
				Description: "Followed the meal plan",
				Timestamp:   t.now,
			}},
		})
	}
	if c, ok := CurrentChallenge(s.state.Challenges, domain.ChallengeDaily, tplDailyDiet, t.now, s.cfg.Location); ok {
		t.completeChallenge(c)
	}

	t.checkTrophies(true)
	t.checkBadges(priorLongest)
	t.refreshGoals()
	t.refreshChallenges()
	out := t.finish()
	degraded := s.degraded
	s.mu.Unlock()

	metrics.ActivitiesRecorded.WithLabelValues("diet").Inc()
	out.Saved = !degraded && s.saver.Flush(ctx)
	return out, nil
}

// CompleteDailyChallenge completes a daily challenge by id.
func (s *Service) CompleteDailyChallenge(ctx context.Context, id string) (Outcome, error) {
	return s.completeByID(ctx, id, domain.ChallengeDaily)
}

// CompleteWeeklyChallenge completes a weekly challenge by id.
func (s *Service) CompleteWeeklyChallenge(ctx context.Context, id string) (Outcome, error) {
	return s.completeByID(ctx, id, domain.ChallengeWeekly)
}

func (s *Service) completeByID(ctx context.Context, id string, typ domain.ChallengeType) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	t.refreshChallenges()
	priorLongest := s.state.Streak.LongestStreak

	var (
		c     domain.Challenge
		found bool
	)
	for _, x := range s.state.Challenges {
		if x.ID == id {
			c, found = x, true
			break
		}
	}
	switch {
	case !found:
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrChallengeNotFound, id)
	case c.Type != typ:
		return Outcome{}, fmt.Errorf("%w: %s is %s", domain.ErrChallengeTypeMismatch, id, c.Type)
	case c.Status == domain.ChallengeExpired:
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrChallengeExpired, id)
	}

	if t.completeChallenge(c) {
		t.checkTrophies(true)
		t.checkBadges(priorLongest)
	}
	metrics.ActivitiesRecorded.WithLabelValues("challenge").Inc()
	return t.finish(), nil
}

// AddXP credits a positive amount of XP with a reason for the feed.
func (s *Service) AddXP(ctx context.Context, amount int, reason string) (Outcome, error) {
	if amount <= 0 {
		return Outcome{}, fmt.Errorf("%w: got %d", domain.ErrInvalidXPAmount, amount)
	}
	if reason == "" {
		reason = "XP awarded"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	t.apply(Patch{XP: []XPGrant{{Amount: amount, Type: domain.ActivityXPAwarded, Title: reason}}})
	metrics.ActivitiesRecorded.WithLabelValues("xp").Inc()
	return t.finish(), nil
}

// SetWeeklyTrainingDays updates the profile value used for new challenge
// and goal targets. Existing targets are not rewritten.
func (s *Service) SetWeeklyTrainingDays(ctx context.Context, days int) (Outcome, error) {
	if days < 1 || days > 7 {
		return Outcome{}, fmt.Errorf("%w: got %d", domain.ErrInvalidTrainingDays, days)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	t.apply(Patch{WeeklyTrainingDays: days})
	t.refreshGoals()
	t.refreshChallenges()
	return t.finish(), nil
}

// ─── Projections ────────────────────────────────────────────────────────────

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() domain.GamificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// StreakSummary returns the streak projection for today.
func (s *Service) StreakSummary() StreakSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeStreak(s.state.Streak, dayOf(s.cfg.Clock(), s.cfg.Location))
}

// Level returns the level projection.
func (s *Service) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LevelOf(s.state.XP.TotalXP)
}

// Trophies returns the trophy projection.
func (s *Service) Trophies() TrophySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeTrophies(s.state)
}

// Badges returns the unique badge projection.
func (s *Service) Badges() BadgeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeBadges(s.state)
}

// Challenges returns the current daily and weekly challenges.
func (s *Service) Challenges() ChallengeSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeChallenges(s.state.Challenges, s.cfg.Clock(), s.cfg.Location)
}

// Goals returns the goal projection.
func (s *Service) Goals() GoalSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SummarizeGoals(s.state.Goals)
}

// Activities returns up to limit feed entries, newest first.
func (s *Service) Activities(limit int) []domain.ActivityItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.state.Activities
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]domain.ActivityItem, len(items))
	copy(out, items)
	return out
}

// Celebrations returns unlocks the user has not been shown yet.
func (s *Service) Celebrations() []Celebration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PendingCelebrations(s.state, s.cfg.Celebrations, s.cfg.Clock(), s.cfg.Location)
}

// AcknowledgeCelebrations marks the current pending batch as shown and
// returns it.
func (s *Service) AcknowledgeCelebrations(ctx context.Context) []Celebration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	t := s.begin()
	shown := PendingCelebrations(s.state, s.cfg.Celebrations, t.now, s.cfg.Location)
	t.apply(AcknowledgeCelebrations(s.state, shown))
	t.finish()
	return shown
}

// Summary is the dashboard projection.
type Summary struct {
	UserID             string          `json:"userId"`
	Streak             StreakSummary   `json:"streak"`
	Level              Level           `json:"level"`
	Counters           domain.Counters `json:"counters"`
	TrophyPoints       int             `json:"trophyPoints"`
	GoldTrophies       int             `json:"goldTrophies"`
	BadgesUnlocked     int             `json:"badgesUnlocked"`
	ChallengesToday    int             `json:"challengesToday"`
	CompletedToday     int             `json:"completedToday"`
	GoalsProgress      int             `json:"goalsProgress"`
	WeeklyTrainingDays int             `json:"weeklyTrainingDays"`
	LastUpdated        time.Time       `json:"lastUpdated"`
	Save               autosave.Status `json:"save"`
}

// Summary returns the dashboard projection.
func (s *Service) Summary() Summary {
	s.mu.Lock()
	st := s.state.Clone()
	now := s.cfg.Clock()
	days := s.trainingDaysLocked()
	s.mu.Unlock()

	trophies := SummarizeTrophies(st)
	challenges := SummarizeChallenges(st.Challenges, now, s.cfg.Location)
	return Summary{
		UserID:             s.userID,
		Streak:             SummarizeStreak(st.Streak, dayOf(now, s.cfg.Location)),
		Level:              LevelOf(st.XP.TotalXP),
		Counters:           st.Counters,
		TrophyPoints:       trophies.Points,
		GoldTrophies:       trophies.GoldCount,
		BadgesUnlocked:     len(st.UniqueBadges),
		ChallengesToday:    len(challenges.Daily),
		CompletedToday:     challenges.CompletedToday,
		GoalsProgress:      OverallGoalProgress(st.Goals),
		WeeklyTrainingDays: days,
		LastUpdated:        st.LastUpdated,
		Save:               s.saver.Status(),
	}
}

// ─── Transaction ────────────────────────────────────────────────────────────

func (s *Service) ensureLoadedLocked(ctx context.Context) {
	if !s.loaded || s.degraded {
		if err := s.loadLocked(ctx); err != nil {
			s.log.Warn("store unavailable, changes stay in memory", "error", err)
		}
	}
}

func (s *Service) trainingDaysLocked() int {
	if s.state.WeeklyTrainingDays > 0 {
		return s.state.WeeklyTrainingDays
	}
	return s.cfg.WeeklyTrainingDays
}

// txn applies patches to the service state in order. Callers hold s.mu.
type txn struct {
	svc   *Service
	now   time.Time
	today string
	out   Outcome
}

func (s *Service) begin() *txn {
	now := s.cfg.Clock()
	return &txn{svc: s, now: now, today: dayOf(now, s.cfg.Location)}
}

func (t *txn) apply(p Patch) {
	if p.Empty() {
		return
	}
	st, res := Reduce(t.svc.state, p, t.now)
	t.svc.state = st
	t.out.XPGained += res.XPGained
	t.out.LevelUps = append(t.out.LevelUps, res.LevelUps...)
	for _, a := range res.Activities {
		if a.XPEarned > 0 {
			metrics.XPAwarded.WithLabelValues(string(a.Type)).Add(float64(a.XPEarned))
		}
	}
	if n := len(res.LevelUps); n > 0 {
		metrics.LevelUps.Add(float64(n))
		t.svc.log.Info("level up", "level", res.LevelUps[n-1])
	}
}

func (t *txn) finish() Outcome {
	st := t.svc.state
	t.out.Level = LevelOf(st.XP.TotalXP)
	t.out.Streak = st.Streak
	if !t.svc.degraded {
		t.svc.saver.Observe(st)
	}
	return t.out
}

func (t *txn) loc() *time.Location { return t.svc.cfg.Location }

// refreshChallenges generates missing rotations and expires stale ones. An
// uncompleted weekly_perfect that expires ends the perfect-week run.
func (t *txn) refreshChallenges() {
	r := RefreshChallenges(t.svc.state.Challenges, t.svc.trainingDaysLocked(), t.now, t.loc())
	p := Patch{Challenges: r.Changed()}
	for _, c := range r.Expired {
		if fromTemplate(c, tplWeeklyPerfect) && c.Progress < c.Target {
			zero := 0
			p.Counters.ConsecutivePerfectWeeks = &zero
		}
	}
	t.apply(p)
}

// completeChallenge completes c and credits its reward. It reports whether
// c was completed by this call.
func (t *txn) completeChallenge(c domain.Challenge) bool {
	done, ok := CompleteChallenge(c, t.now)
	if !ok {
		return false
	}
	t.challengeCompleted(done)
	return true
}

// progressChallenge adds delta to the live challenge built from templateID.
func (t *txn) progressChallenge(typ domain.ChallengeType, templateID string, delta int) {
	c, ok := CurrentChallenge(t.svc.state.Challenges, typ, templateID, t.now, t.loc())
	if !ok || c.Status != domain.ChallengeActive {
		return
	}
	updated, completed := UpdateChallengeProgress(c, c.Progress+delta, t.now)
	if completed {
		t.challengeCompleted(updated)
		return
	}
	t.apply(Patch{Challenges: []domain.Challenge{updated}})
}

func (t *txn) challengeCompleted(c domain.Challenge) {
	p := Patch{
		Challenges: []domain.Challenge{c},
		XP: []XPGrant{{
			Amount:   c.XPReward,
			Type:     domain.ActivityChallengeCompleted,
			Title:    c.Title,
			Metadata: map[string]any{"challengeId": c.ID},
		}},
	}
	if fromTemplate(c, tplWeeklyPerfect) {
		p = p.Merge(t.perfectWeekPatch(c))
	}
	t.apply(p)
	t.out.ChallengesCompleted = append(t.out.ChallengesCompleted, c.ID)
	metrics.ChallengesCompleted.WithLabelValues(string(c.Type)).Inc()
}

// perfectWeekPatch counts a perfect week and extends the run when last
// week's perfect challenge was completed too.
func (t *txn) perfectWeekPatch(c domain.Challenge) Patch {
	thisWeek := startOfWeek(t.now, t.loc())
	lastWeek := thisWeek.AddDate(0, 0, -7)
	run := 1
	for _, x := range t.svc.state.Challenges {
		if x.ID == c.ID || !fromTemplate(x, tplWeeklyPerfect) || x.Status != domain.ChallengeCompleted {
			continue
		}
		if !x.CreatedAt.Before(lastWeek) && x.CreatedAt.Before(thisWeek) {
			run = t.svc.state.ConsecutivePerfectWeeks + 1
			break
		}
	}
	return Patch{Counters: CounterDelta{PerfectWeeks: 1, ConsecutivePerfectWeeks: &run}}
}

// advanceWorkoutChallenges feeds a workout into the current challenges.
// newDay is true when the workout is the first of its calendar day.
func (t *txn) advanceWorkoutChallenges(newDay bool) {
	if c, ok := CurrentChallenge(t.svc.state.Challenges, domain.ChallengeDaily, tplDailyWorkout, t.now, t.loc()); ok {
		t.completeChallenge(c)
	}
	t.progressChallenge(domain.ChallengeWeekly, tplWeeklyWorkouts, 1)
	if newDay {
		t.progressChallenge(domain.ChallengeWeekly, tplWeeklyConsistency, 1)
		t.progressChallenge(domain.ChallengeWeekly, tplWeeklyPerfect, 1)
	}
}

// checkTrophies raises trophies to the tier their metrics reach and credits
// the tier rewards. Without celebrate the new tiers are marked notified.
func (t *txn) checkTrophies(celebrate bool) {
	changed, unlocks := EvaluateTrophies(t.svc.state, t.now)
	if !celebrate {
		raised := make(map[string]bool, len(unlocks))
		for _, u := range unlocks {
			raised[u.TrophyID] = true
		}
		for i := range changed {
			if raised[changed[i].TrophyID] {
				changed[i].Notified = true
			}
		}
	}
	p := Patch{Trophies: changed}
	for _, u := range unlocks {
		def, _ := trophyByID(u.TrophyID)
		p.XP = append(p.XP, XPGrant{
			Amount:   u.XPReward,
			Type:     domain.ActivityBadgeEarned,
			Title:    fmt.Sprintf("%s: %s", def.Name, u.To),
			Metadata: map[string]any{"trophyId": u.TrophyID, "tier": string(u.To)},
		})
		for _, tier := range u.Tiers {
			metrics.TrophyTierUnlocks.WithLabelValues(u.TrophyID, string(tier)).Inc()
		}
		t.svc.log.Info("trophy tier unlocked", "trophy", u.TrophyID, "from", u.From, "to", u.To, "xp", u.XPReward)
	}
	t.apply(p)
	t.out.TrophyUnlocks = append(t.out.TrophyUnlocks, unlocks...)
}

func (t *txn) checkBadges(priorLongest int) {
	unlocks := EvaluateBadges(BadgeContext{State: t.svc.state, PriorLongestStreak: priorLongest}, t.now)
	if len(unlocks) == 0 {
		return
	}
	var p Patch
	for _, u := range unlocks {
		p.UniqueBadges = append(p.UniqueBadges, u.Badge)
		p.XP = append(p.XP, XPGrant{
			Amount:   u.XPReward,
			Type:     domain.ActivityBadgeEarned,
			Title:    u.Def.Name,
			Metadata: map[string]any{"badgeId": u.Def.ID},
		})
		t.out.BadgesUnlocked = append(t.out.BadgesUnlocked, u.Def.ID)
		metrics.BadgeUnlocks.WithLabelValues(u.Def.ID).Inc()
		t.svc.log.Info("badge unlocked", "badge", u.Def.ID)
	}
	t.apply(p)
}

func (t *txn) advanceWorkoutGoals() {
	t.goalsChanged(AdvanceWorkoutGoals(t.svc.state.Goals, t.now, t.loc()))
}

func (t *txn) refreshGoals() {
	st := t.svc.state
	t.goalsChanged(RefreshGoals(st.Goals, t.svc.trainingDaysLocked(), st.Streak.CurrentStreak, t.now, t.loc()))
}

// goalsChanged applies a goal pass and pays completed goals. A completed
// monthly workout goal is a perfect month, which may unlock a trophy tier.
func (t *txn) goalsChanged(r GoalRefresh) {
	p := Patch{Goals: r.Changed}
	for _, g := range r.Completed {
		p.XP = append(p.XP, XPGrant{
			Amount:   RewardGoalAchieved,
			Type:     domain.ActivityGoalAchieved,
			Title:    g.Title,
			Metadata: map[string]any{"goalId": g.ID},
		})
		if IsMonthlyWorkoutGoal(g.ID) {
			p.Counters.PerfectMonths++
		}
		t.out.GoalsCompleted = append(t.out.GoalsCompleted, g.ID)
		metrics.GoalsCompleted.WithLabelValues(string(g.Category)).Inc()
	}
	t.apply(p)
	if p.Counters.PerfectMonths > 0 {
		t.checkTrophies(true)
	}
}

func fromTemplate(c domain.Challenge, templateID string) bool {
	return strings.HasPrefix(c.ID, templateID+"_")
}

func normalizeModality(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}
