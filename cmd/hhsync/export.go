package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hhsurvey/hhsync/internal/survey/core"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

// Export is the document written by the export command, keyed by table.
type Export map[string][]map[string]any

var exportFormats = []string{"json", "yaml", "toml"}

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"unsynced"},
	GroupID: "sync",
	Short:   "Write unsynced rows to a file or stdout",
	Long: `Write the rows that have not reached the remote yet, grouped by table.
Use --all to include rows that are already synced. The format is taken
from --format, or from the --output extension.`,
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		output := mustString(f.GetString("output"))
		format, err := exportFormat(mustString(f.GetString("format")), output)
		if err != nil {
			fatalf("%v", err)
		}
		all := mustBool(f.GetBool("all"))

		withCore(false, func(ctx context.Context, c *core.Core) error {
			var doc Export
			if all {
				doc = exportMirror(c.Mirror())
			} else {
				u, err := c.GetUnsyncedData(ctx)
				if err != nil {
					return err
				}
				doc = exportUnsynced(u)
			}

			var w io.Writer = os.Stdout
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := encodeExport(w, format, doc); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(os.Stderr, "%s Wrote %d rows to %s\n", renderPass("✓"), doc.Rows(), output)
			}
			return nil
		})
	},
}

// exportFormat resolves the output format from the flag or file extension.
func exportFormat(flag, output string) (string, error) {
	format := strings.ToLower(flag)
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".yaml", ".yml":
			format = "yaml"
		case ".toml":
			format = "toml"
		default:
			format = "json"
		}
	}
	for _, f := range exportFormats {
		if f == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", flag, strings.Join(exportFormats, ", "))
}

// Rows is the number of rows across all tables.
func (e Export) Rows() int {
	n := 0
	for _, rows := range e {
		n += len(rows)
	}
	return n
}

func exportUnsynced(u *sync.UnsyncedData) Export {
	doc := Export{}
	for _, h := range u.Households {
		doc.add(h, h.Synced)
	}
	for _, m := range u.Members {
		doc.add(m, m.Synced)
	}
	for _, m := range u.MealPatterns {
		doc.add(m, m.Synced)
	}
	for _, h := range u.HealthInfo {
		doc.add(h, h.Synced)
	}
	for _, i := range u.Immunizations {
		doc.add(i, i.Synced)
	}
	return doc
}

func exportMirror(m *core.Mirror) Export {
	doc := Export{}
	for _, h := range m.Households() {
		doc.add(h, h.Synced)
	}
	for _, mem := range m.Members() {
		doc.add(mem, mem.Synced)
	}
	for _, mp := range m.MealPatterns() {
		doc.add(mp, mp.Synced)
	}
	for _, h := range m.HealthInfo() {
		doc.add(h, h.Synced)
	}
	for _, i := range m.Immunizations() {
		doc.add(i, i.Synced)
	}
	return doc
}

// add flattens r into a column map. Null columns are left out so every
// format can represent the row.
func (e Export) add(r schema.Record, synced bool) {
	row := map[string]any{
		"synced":   synced,
		"revision": r.RecordRevision(),
	}
	values := r.Values()
	for i, col := range r.Columns() {
		if values[i] != nil {
			row[col] = values[i]
		}
	}
	e[r.TableName()] = append(e[r.TableName()], row)
}

func encodeExport(w io.Writer, format string, doc Export) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
}

func init() {
	exportCmd.Flags().StringP("format", "f", "", "json, yaml or toml (default: from --output, else json)")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")
	exportCmd.Flags().Bool("all", false, "include synced rows")
	rootCmd.AddCommand(exportCmd)
}
