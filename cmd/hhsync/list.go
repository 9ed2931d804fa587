package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/hhsurvey/hhsync/internal/survey/core"
)

var householdListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded households",
	Run: func(cmd *cobra.Command, args []string) {
		withCore(false, func(ctx context.Context, c *core.Core) error {
			m := c.Mirror()
			hs := m.Households()
			if len(hs) == 0 {
				fmt.Println("No households recorded")
				return nil
			}
			t := newTable("ID", "NUMBER", "BARANGAY", "VISITED", "MEMBERS", "SYNCED")
			for _, h := range hs {
				t.Row(strconv.FormatInt(h.ID, 10), h.HouseholdNumber, h.Barangay, h.DateOfVisit,
					strconv.Itoa(len(m.MembersOf(h.ID))), syncedMark(h.Synced))
			}
			fmt.Println(t.Render())
			return nil
		})
	},
}

var memberListCmd = &cobra.Command{
	Use:   "list <household-id>",
	Short: "List the members of a household",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		householdID := parseID(args[0])
		withCore(false, func(ctx context.Context, c *core.Core) error {
			members := c.Mirror().MembersOf(householdID)
			if len(members) == 0 {
				fmt.Printf("No members recorded for household %d\n", householdID)
				return nil
			}
			t := newTable("ID", "NAME", "RELATIONSHIP", "AGE", "CLASS", "SYNCED")
			for _, mem := range members {
				t.Row(strconv.FormatInt(mem.ID, 10), mem.FullName(), mem.Relationship,
					strconv.Itoa(mem.Age), mem.Classification, syncedMark(mem.Synced))
			}
			fmt.Println(t.Render())
			return nil
		})
	},
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func syncedMark(synced bool) string {
	if synced {
		return renderPass("yes")
	}
	return renderWarn("no")
}

func init() {
	householdCmd.AddCommand(householdListCmd)
	memberCmd.AddCommand(memberListCmd)
}
