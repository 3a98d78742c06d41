package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
	"github.com/myeasy-ai/fitquest/internal/domain"
)

func init() {
	for _, c := range []*cobra.Command{workoutCmd, dietCmd, xpCmd, statusCmd} {
		c.Flags().StringP("user", "u", "", "User id")
		_ = c.MarkFlagRequired("user")
		rootCmd.AddCommand(c)
	}
	workoutCmd.Flags().Int("hour", -1, "Local hour the workout finished (0-23)")
	workoutCmd.Flags().String("modality", "", "Workout modality, e.g. run, yoga")
	xpCmd.Flags().Int("amount", 0, "XP to award")
	xpCmd.Flags().String("reason", "", "Reason shown in the activity feed")
}

var workoutCmd = &cobra.Command{
	Use:   "workout",
	Short: "Record a completed workout",
	RunE: func(cmd *cobra.Command, args []string) error {
		var w engagement.Workout
		if h, _ := cmd.Flags().GetInt("hour"); h >= 0 {
			w.Hour = &h
		}
		w.Modality, _ = cmd.Flags().GetString("modality")
		return withSession(cmd, func(ctx context.Context, svc *engagement.Service) error {
			out, err := svc.RecordWorkoutCompleted(ctx, w)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), "Workout recorded", out)
			return nil
		})
	},
}

var dietCmd = &cobra.Command{
	Use:   "diet",
	Short: "Record that today's diet plan was followed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, svc *engagement.Service) error {
			out, err := svc.RecordDietFollowed(ctx)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), "Diet day recorded", out)
			return nil
		})
	},
}

var xpCmd = &cobra.Command{
	Use:   "xp",
	Short: "Award XP to a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetInt("amount")
		reason, _ := cmd.Flags().GetString("reason")
		return withSession(cmd, func(ctx context.Context, svc *engagement.Service) error {
			out, err := svc.AddXP(ctx, amount, reason)
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), "XP awarded", out)
			return nil
		})
	},
}

// withSession opens the daemon, runs fn on the user's session and flushes
// it on the way out.
func withSession(cmd *cobra.Command, fn func(context.Context, *engagement.Service) error) error {
	userID, _ := cmd.Flags().GetString("user")
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := d.Session(ctx, userID)
	if err != nil {
		return err
	}
	if svc.Degraded() {
		return fmt.Errorf("load %s: %w", userID, domain.ErrStateUnavailable)
	}
	if err := fn(ctx, svc); err != nil {
		return err
	}
	if !svc.ForceSave(ctx) {
		return fmt.Errorf("save failed: %s", svc.SaveStatus().LastError)
	}
	return nil
}

func printOutcome(w io.Writer, title string, out engagement.Outcome) {
	fmt.Fprintf(w, "%s: +%d XP (level %d, %d XP to next)\n", title,
		out.XPGained, out.Level.CurrentLevel, out.Level.XPToNextLevel)
	fmt.Fprintf(w, "Streak: %d day(s)\n", out.Streak.CurrentStreak)
	for _, lvl := range out.LevelUps {
		fmt.Fprintf(w, "  Level up! Reached level %d\n", lvl)
	}
	for _, u := range out.TrophyUnlocks {
		fmt.Fprintf(w, "  Trophy: %s (%s)\n", u.TrophyID, u.To)
	}
	if len(out.BadgesUnlocked) > 0 {
		fmt.Fprintf(w, "  Badges: %s\n", strings.Join(out.BadgesUnlocked, ", "))
	}
	if len(out.ChallengesCompleted) > 0 {
		fmt.Fprintf(w, "  Challenges completed: %s\n", strings.Join(out.ChallengesCompleted, ", "))
	}
	if len(out.GoalsCompleted) > 0 {
		fmt.Fprintf(w, "  Goals completed: %s\n", strings.Join(out.GoalsCompleted, ", "))
	}
}
