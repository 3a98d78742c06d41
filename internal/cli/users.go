package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(usersCmd)
}

var usersCmd = &cobra.Command{
	Use:     "users",
	Aliases: []string{"ls"},
	Short:   "List users with stored state",
	RunE:    runUsers,
}

func runUsers(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	ids, err := d.DB.UserIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users yet. Run 'fitquest workout --user <id>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tLEVEL\tSTREAK\tUPDATED")
	for _, id := range ids {
		st, err := d.DB.Load(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			id, st.XP.CurrentLevel, st.Streak.CurrentStreak,
			st.LastUpdated.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
