// Command hhsync is the operator CLI for the household survey store: it
// records survey forms on the device, syncs them to the cloud and manages
// the local database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hhsurvey/hhsync/internal/config"
	"github.com/hhsurvey/hhsync/internal/logging"
	"github.com/hhsurvey/hhsync/internal/survey/core"
)

var (
	v          = config.New()
	cfg        *config.Config
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hhsync",
	Short: "Offline-first household health survey store",
	Long: `hhsync keeps household health survey records on this device and
replicates them to a Supabase (Postgres) or Turso (libSQL) database
whenever a connection is available.

Configuration is read from hhsync.toml (or .yaml) in ~/.hhsync or the
current directory, then HHSYNC_* environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			fatalf("%v", err)
		}
		setupColor()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Survey records:"},
		&cobra.Group{ID: "sync", Title: "Synchronization:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: hhsync.toml in ~/.hhsync or .)")
	pf.String("db", "", "local database path")
	pf.String("remote", "", "remote database URL (postgres://, libsql://)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log component activity to stderr")

	bindFlag(v, "db_path", "db")
	bindFlag(v, "remote.url", "remote")
}

func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func openSink() *logging.Sink {
	return logging.Open(logging.Options{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Quiet:      !verbose,
	})
}

// openCore builds the survey core from the loaded configuration. A sink is
// opened unless opts carries one.
func openCore(opts core.Options) (*core.Core, *logging.Sink) {
	if opts.Sink == nil {
		opts.Sink = openSink()
	}
	sink := opts.Sink
	opts.Config = cfg
	c, err := core.New(opts)
	if err != nil {
		sink.Close()
		fatalf("failed to open survey store: %v", err)
	}
	return c, sink
}

// withCore runs fn against a core that is closed afterwards. When pushes on
// insert are enabled, connectivity is probed first.
func withCore(probe bool, fn func(ctx context.Context, c *core.Core) error) {
	c, sink := openCore(core.Options{})
	ctx := context.Background()
	if probe && cfg.PushOnInsert {
		c.Probe(ctx)
	}
	err := fn(ctx, c)
	if cerr := c.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", cerr)
	}
	sink.Close()
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
