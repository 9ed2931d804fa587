package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hhsurvey/hhsync/internal/survey/core"
	"github.com/hhsurvey/hhsync/internal/survey/remote"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push unsynced rows to the remote",
	Long: `Push every unsynced row to the remote in parent-first order. Rows whose
parent is not yet on the remote are skipped and retried next time. A
failure on one row does not stop the others.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut := mustBool(cmd.Flags().GetBool("json"))
		verboseRows := mustBool(cmd.Flags().GetBool("rows"))
		withCore(false, func(ctx context.Context, c *core.Core) error {
			p, err := c.SyncWithRemote(ctx)
			if errors.Is(err, remote.ErrNotConfigured) {
				return fmt.Errorf("no remote configured (set remote.url or HHSYNC_REMOTE_URL)")
			}
			if p == nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(p); encErr != nil {
					return encErr
				}
				return err
			}
			printPass(p, verboseRows)
			return err
		})
	},
}

func printPass(p *sync.PassSummary, rows bool) {
	n := p.Counts()
	if len(p.Rows) == 0 {
		fmt.Printf("%s Nothing to sync\n", renderPass("✓"))
		return
	}
	mark := renderPass("✓")
	if n.Failed > 0 {
		mark = renderFail("✗")
	} else if n.Skipped > 0 {
		mark = renderWarn("!")
	}
	fmt.Printf("%s Sync pass %s: %d synced, %d skipped, %d failed in %s\n",
		mark, renderMuted(p.ID.String()[:8]), n.Synced, n.Skipped, n.Failed, p.Duration.Round(time.Millisecond))
	for _, r := range p.Rows {
		if r.Outcome == sync.Synced && !rows {
			continue
		}
		reason := ""
		if r.Reason != "" {
			reason = ": " + r.Reason
		}
		fmt.Printf("  %-8s %s #%d%s\n", outcomeLabel(r.Outcome), r.Table, r.ID, reason)
	}
}

func outcomeLabel(o sync.Outcome) string {
	switch o {
	case sync.Synced:
		return renderPass(string(o))
	case sync.Skipped:
		return renderWarn(string(o))
	default:
		return renderFail(string(o))
	}
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show local row counts and connectivity",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut := mustBool(cmd.Flags().GetBool("json"))
		withCore(false, func(ctx context.Context, c *core.Core) error {
			c.Probe(ctx)
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			fmt.Print(renderStatus(st))
			return nil
		})
	},
}

func renderStatus(st *core.Status) string {
	conn := renderFail("offline")
	switch {
	case !st.RemoteConfigured:
		conn = renderMuted("local only")
	case st.Online:
		conn = renderPass("online")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("TABLE", "ROWS", "UNSYNCED").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if col > 0 {
				s = s.Align(lipgloss.Right)
			}
			return s
		})
	for _, ts := range st.Tables {
		unsynced := strconv.Itoa(ts.Unsynced)
		if ts.Unsynced > 0 {
			unsynced = renderWarn(unsynced)
		}
		t.Row(ts.Table, humanize.Comma(int64(ts.Total)), unsynced)
	}

	return fmt.Sprintf("Database: %s (%s)\nRemote:   %s\n%s\n%d rows waiting to sync\n",
		st.DBPath, humanize.Bytes(uint64(st.DBSize)), conn, t.Render(), st.Unsynced())
}

var remoteCmd = &cobra.Command{
	Use:     "remote",
	GroupID: "sync",
	Short:   "Manage the remote database",
}

var remoteInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the survey tables on the remote",
	Long: `Create the five survey tables on the remote if they do not exist yet.
Safe to run more than once.`,
	Run: func(cmd *cobra.Command, args []string) {
		withCore(false, func(ctx context.Context, c *core.Core) error {
			if err := c.BootstrapRemote(ctx); err != nil {
				return fmt.Errorf("failed to create remote schema: %w", err)
			}
			fmt.Printf("%s Remote schema ready\n", renderPass("✓"))
			return nil
		})
	},
}

func init() {
	syncCmd.Flags().Bool("json", false, "print the pass summary as JSON")
	syncCmd.Flags().Bool("rows", false, "list synced rows too")
	statusCmd.Flags().Bool("json", false, "print status as JSON")
	remoteCmd.AddCommand(remoteInitCmd)
	rootCmd.AddCommand(syncCmd, statusCmd, remoteCmd)
}
