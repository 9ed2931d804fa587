package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hhsurvey/hhsync/internal/config"
	"github.com/hhsurvey/hhsync/internal/logging"
	"github.com/hhsurvey/hhsync/internal/survey/core"
	"github.com/hhsurvey/hhsync/internal/survey/records"
)

func Example() {
	dir, err := os.MkdirTemp("", "hhsync-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	c, err := core.New(core.Options{
		Config: &config.Config{
			DBPath: filepath.Join(dir, "survey.db"),
			Probe:  config.ProbeConfig{Interval: time.Minute, Timeout: time.Second},
		},
		Sink: logging.Open(logging.Options{Quiet: true}),
	})
	if err != nil {
		panic(err)
	}
	defer c.Close()
	ctx := context.Background()

	id, _ := c.InsertHousehold(ctx, core.HouseholdInput{HouseholdNumber: "HH-001"})
	dup, err := c.InsertHousehold(ctx, core.HouseholdInput{HouseholdNumber: "HH-001"})
	fmt.Println(id, dup, errors.Is(err, records.ErrDuplicateHousehold))

	unsynced, _ := c.GetUnsyncedData(ctx)
	fmt.Println("unsynced:", unsynced.Total())

	err = c.ResetLocalDatabase(ctx, core.ResetOptions{Confirmed: true})
	fmt.Println(errors.Is(err, core.ErrUnsyncedData))
	// Output:
	// 1 1 true
	// unsynced: 1
	// true
}
