package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/myeasy-ai/fitquest/internal/domain"
)

func init() {
	migrateCmd.Flags().Bool("down", false, "Roll back the most recent schema migration")
	migrateCmd.Flags().Bool("documents", false, "Also load and re-save every stored user document")
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply pending schema migrations. With --documents, every stored user is
loaded, brought to the current document version and saved back.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if down, _ := cmd.Flags().GetBool("down"); down {
		if err := d.DB.MigrateDown(); err != nil {
			return err
		}
	}
	version, err := d.DB.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Schema version: %d\n", version)

	if docs, _ := cmd.Flags().GetBool("documents"); !docs {
		return nil
	}
	ctx := cmd.Context()
	ids, err := d.DB.UserIDs(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, id := range ids {
		svc, err := d.Session(ctx, id)
		if err == nil && svc.Degraded() {
			err = domain.ErrStateUnavailable
		} else if err == nil && !svc.ForceSave(ctx) {
			err = fmt.Errorf("%s", svc.SaveStatus().LastError)
		}
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", id, err)
		}
		d.Sessions.Evict(id)
	}
	fmt.Fprintf(out, "Documents migrated: %d/%d\n", len(ids)-failed, len(ids))
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed", failed)
	}
	return nil
}
