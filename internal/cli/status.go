package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a user's streak, level, trophies and open challenges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, svc *engagement.Service) error {
			sum := svc.Summary()
			challenges := svc.Challenges()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "USER\t%s\n", sum.UserID)
			fmt.Fprintf(w, "LEVEL\t%d (%d XP total, %d to next)\n",
				sum.Level.CurrentLevel, sum.Level.TotalXP, sum.Level.XPToNextLevel)
			fmt.Fprintf(w, "STREAK\t%d day(s), longest %d\n",
				sum.Streak.CurrentStreak, sum.Streak.LongestStreak)
			fmt.Fprintf(w, "WORKOUTS\t%d\n", sum.Counters.TotalWorkoutsCompleted)
			fmt.Fprintf(w, "TROPHIES\t%d points, %d gold\n", sum.TrophyPoints, sum.GoldTrophies)
			fmt.Fprintf(w, "BADGES\t%d\n", sum.BadgesUnlocked)
			fmt.Fprintf(w, "GOALS\t%d%%\n", sum.GoalsProgress)
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())
			w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHALLENGE\tTYPE\tPROGRESS\tSTATUS\tXP")
			for _, c := range append(challenges.Daily, challenges.Weekly...) {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%d\n",
					c.Title, c.Type, c.Progress, c.Target, c.Status, c.XPReward)
			}
			return w.Flush()
		})
	},
}
