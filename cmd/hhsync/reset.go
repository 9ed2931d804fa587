package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hhsurvey/hhsync/internal/survey/core"
)

var resetCmd = &cobra.Command{
	Use:     "reset",
	GroupID: "maint",
	Short:   "Wipe the local database",
	Long: `Drop and recreate every local table. Identifiers start again at 1.

The reset is refused while rows are still waiting to sync unless --force
is given. Without --yes you are asked to confirm.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes := mustBool(cmd.Flags().GetBool("yes"))
		force := mustBool(cmd.Flags().GetBool("force"))

		withCore(false, func(ctx context.Context, c *core.Core) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if n := st.Unsynced(); n > 0 {
				msg := fmt.Sprintf("%d rows have not been synced", n)
				if !force {
					return fmt.Errorf("%s; run 'hhsync sync' first or pass --force", msg)
				}
				fmt.Fprintf(os.Stderr, "%s %s and will be lost\n", renderWarn("!"), msg)
			}

			confirmed := yes
			if !confirmed {
				if !isTTY(os.Stdin) {
					return fmt.Errorf("refusing to reset without --yes on a non-interactive terminal")
				}
				if confirmed, err = confirmReset(st.DBPath); err != nil {
					return err
				}
			}

			err = c.ResetLocalDatabase(ctx, core.ResetOptions{Confirmed: confirmed, Force: force})
			if errors.Is(err, core.ErrResetNotConfirmed) {
				fmt.Println("Reset canceled")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s Local database reset\n", renderPass("✓"))
			return nil
		})
	},
}

func confirmReset(path string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title("Reset the local database?").
		Description(fmt.Sprintf("Every table in %s will be dropped and recreated.", path)).
		Affirmative("Reset").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return ok, nil
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	resetCmd.Flags().Bool("force", false, "discard rows that were never synced")
	rootCmd.AddCommand(resetCmd)
}
