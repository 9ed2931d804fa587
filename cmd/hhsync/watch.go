package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hhsurvey/hhsync/internal/config"
	"github.com/hhsurvey/hhsync/internal/survey/core"
	"github.com/hhsurvey/hhsync/internal/survey/events"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Stay running and sync whenever the remote becomes reachable",
	Long: `Probe the remote on an interval and run a sync pass each time the
device comes back online. With dashboard.port set (or --port), an events
server streams record, sync and connectivity events over WebSocket at
/ws and serves /health and /metrics.

Changes to probe.interval in the config file apply without a restart.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port = mustInt(cmd.Flags().GetInt("port"))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := prometheus.NewRegistry()
		sink := openSink()
		opts := core.Options{Registerer: reg, Sink: sink}

		var (
			c      *core.Core
			server *events.Server
		)
		if cfg.Dashboard.Port > 0 {
			server = events.NewServer(&events.Config{
				Port: cfg.Dashboard.Port,
				Status: func() any {
					st, err := c.Status(ctx)
					if err != nil {
						return nil
					}
					return st
				},
				Gatherer: reg,
				Logger:   sink.Logger("events"),
			})
			opts.Events = server
		}

		c, _ = openCore(opts)
		defer sink.Close()
		defer c.Close()

		if server != nil {
			if err := server.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting events server: %v\n", err)
				return
			}
			defer server.Stop()
			fmt.Printf("%s Events at ws://%s/ws\n", renderAccent("→"), server.Addr())
		}

		config.Watch(v, func(next *config.Config, e fsnotify.Event) {
			if next.Probe.Interval != cfg.Probe.Interval {
				sink.Logger("config").Printf("Probe interval changed to %s (%s)", next.Probe.Interval, e.Name)
				c.SetProbeInterval(next.Probe.Interval)
			}
			cfg.Probe = next.Probe
		}, func(err error) {
			sink.Logger("config").Printf("WARNING: Ignoring config change: %v", err)
		})

		fmt.Printf("%s Probing the remote every %s (Ctrl+C to stop)\n",
			renderPass("●"), cfg.Probe.Interval)
		if err := c.RunProbe(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		fmt.Println("Stopped")
	},
}

func mustInt(n int, err error) int {
	if err != nil {
		panic(err)
	}
	return n
}

func init() {
	watchCmd.Flags().Int("port", 0, "events server port (overrides dashboard.port)")
	rootCmd.AddCommand(watchCmd)
}
