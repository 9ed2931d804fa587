// Package core wires the survey components into a single context object
// that a UI (or the hhsync CLI) holds for the life of the process.
//
// Core owns the shared local store and remote client: they are opened once
// by New and closed only by Close.
package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hhsurvey/hhsync/internal/config"
	"github.com/hhsurvey/hhsync/internal/logging"
	"github.com/hhsurvey/hhsync/internal/survey/localdb"
	"github.com/hhsurvey/hhsync/internal/survey/netwatch"
	"github.com/hhsurvey/hhsync/internal/survey/records"
	"github.com/hhsurvey/hhsync/internal/survey/remote"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

// Types handed to and returned from the collaborator surface.
type (
	HouseholdInput    = records.HouseholdInput
	MealPatternInput  = records.MealPatternInput
	MemberInput       = records.MemberInput
	MemberPatch       = records.MemberPatch
	HealthInfoInput   = records.HealthInfoInput
	ImmunizationInput = records.ImmunizationInput
	UpdateResult      = records.UpdateResult
	PassSummary       = sync.PassSummary
	UnsyncedData      = sync.UnsyncedData
)

var (
	// ErrResetNotConfirmed is returned by ResetLocalDatabase without confirmation.
	ErrResetNotConfirmed = errors.New("reset not confirmed")

	// ErrUnsyncedData is returned by ResetLocalDatabase while rows are still
	// waiting to be synced, unless forced.
	ErrUnsyncedData = errors.New("local database has unsynced data")
)

// EventSink receives everything worth showing to a live UI.
type EventSink interface {
	records.Notifier
	sync.Notifier
	Connectivity(connected bool)
	Reset()
}

// Options configures New.
type Options struct {
	Config *config.Config

	// Sink provides component loggers. Default: stderr.
	Sink *logging.Sink

	// Store overrides the remote built from Config.Remote.
	Store remote.Store

	// Events receives live events. Optional.
	Events EventSink

	// Registerer receives the sync metrics. Optional.
	Registerer prometheus.Registerer

	// Now is the clock for derived ages. Default: time.Now.
	Now func() time.Time
}

// Core is the survey application context.
type Core struct {
	cfg     *config.Config
	local   *localdb.DB
	store   remote.Store
	engine  *sync.Engine
	dao     *records.DAO
	watcher *netwatch.Watcher
	prober  netwatch.Prober
	mirror  *Mirror
	events  EventSink
	metrics *sync.Metrics
	logger  *log.Logger

	// work is held shared by writes and passes, exclusively by a reset.
	work gosync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New opens the local store, prepares the remote client and wires the
// components together. The remote is not contacted.
func New(opts Options) (*Core, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	sink := opts.Sink
	if sink == nil {
		sink = logging.Open(logging.Options{})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	local, err := localdb.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := local.InitSchema(); err != nil {
		local.Close()
		return nil, err
	}

	var store remote.Store
	switch {
	case opts.Store != nil:
		store = opts.Store
	case cfg.Remote.URL != "":
		s, err := remote.Open(cfg.Remote.URL, cfg.Remote.AuthToken)
		if err != nil {
			local.Close()
			return nil, err
		}
		store = s
	}

	c := &Core{
		cfg:     cfg,
		local:   local,
		store:   store,
		mirror:  &Mirror{},
		events:  opts.Events,
		metrics: sync.NewMetrics(opts.Registerer),
		logger:  sink.Logger("core"),
		done:    make(chan struct{}),
	}

	engineOpts := []sync.Option{sync.WithLogger(sink.Logger("sync")), sync.WithMetrics(c.metrics)}
	if c.events != nil {
		engineOpts = append(engineOpts, sync.WithNotifier(c.events))
	}
	c.engine = sync.New(local, store, engineOpts...)

	c.watcher = netwatch.New(&netwatch.Config{
		Interval:  cfg.Probe.Interval,
		Timeout:   cfg.Probe.Timeout,
		OnConnect: c.onConnect,
		Logger:    sink.Logger("netwatch"),
	})
	c.prober = c.buildProber()

	daoOpts := []records.Option{records.WithLogger(sink.Logger("records")), records.WithClock(now)}
	if store != nil && cfg.PushOnInsert {
		daoOpts = append(daoOpts, records.WithPush(c.engine, c.watcher))
	} else if store != nil {
		daoOpts = append(daoOpts, records.WithPush(c.engine, offline{}))
	}
	if c.events != nil {
		daoOpts = append(daoOpts, records.WithNotifier(c.events))
	}
	c.dao = records.New(local, daoOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.forwardConnectivity(ctx)

	if err := c.mirror.Refresh(ctx, local); err != nil {
		c.logger.Printf("WARNING: Failed to load mirror: %v", err)
	}
	return c, nil
}

// offline keeps explicit update pushes possible while insert pushes are off.
type offline struct{}

func (offline) Online() bool { return false }

func (c *Core) buildProber() netwatch.Prober {
	if c.cfg.Probe.Address != "" {
		return netwatch.DialProber{Address: c.cfg.Probe.Address}
	}
	if c.store != nil {
		return netwatch.PingProber{Target: c.store}
	}
	return nil
}

func (c *Core) onConnect(ctx context.Context) {
	if c.store == nil {
		return
	}
	if _, err := c.SyncWithRemote(ctx); err != nil {
		c.logger.Printf("WARNING: Catch-up sync failed: %v", err)
	}
}

func (c *Core) forwardConnectivity(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.watcher.Events():
			if c.events != nil {
				c.events.Connectivity(ev.Connected)
			}
		}
	}
}

// Close stops background work and closes the remote and local stores.
func (c *Core) Close() error {
	c.cancel()
	<-c.done
	c.watcher.Wait()

	var errs []error
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close remote: %w", err))
		}
	}
	if err := c.local.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ===== Collaborator surface =====

// InsertHousehold saves a household. A duplicate number returns the
// existing id with records.ErrDuplicateHousehold.
func (c *Core) InsertHousehold(ctx context.Context, in HouseholdInput) (int64, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	id, err := c.dao.InsertHousehold(ctx, in)
	if err == nil {
		c.refresh(ctx)
	}
	return id, err
}

// InsertMealPattern saves the meal pattern of a household.
func (c *Core) InsertMealPattern(ctx context.Context, householdID int64, in MealPatternInput) error {
	c.work.RLock()
	defer c.work.RUnlock()
	err := c.dao.InsertMealPattern(ctx, householdID, in)
	if err == nil {
		c.refresh(ctx)
	}
	return err
}

// InsertMember saves a family member and returns its id.
func (c *Core) InsertMember(ctx context.Context, in MemberInput) (int64, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	id, err := c.dao.InsertMember(ctx, in)
	if err == nil {
		c.refresh(ctx)
	}
	return id, err
}

// UpdateMemberData patches a member, optionally pushing the change.
func (c *Core) UpdateMemberData(ctx context.Context, id int64, patch MemberPatch, push bool) (UpdateResult, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	res, err := c.dao.UpdateMemberData(ctx, id, patch, push)
	if res.Saved {
		c.refresh(ctx)
	}
	return res, err
}

// InsertMemberHealthInfo saves a member's health profile.
func (c *Core) InsertMemberHealthInfo(ctx context.Context, in HealthInfoInput) (int64, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	id, err := c.dao.InsertMemberHealthInfo(ctx, in)
	if err == nil {
		c.refresh(ctx)
	}
	return id, err
}

// InsertImmunization saves a member's immunization record.
func (c *Core) InsertImmunization(ctx context.Context, in ImmunizationInput) (int64, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	id, err := c.dao.InsertImmunization(ctx, in)
	if err == nil {
		c.refresh(ctx)
	}
	return id, err
}

// SyncWithRemote runs a full pass, joining one already in flight.
func (c *Core) SyncWithRemote(ctx context.Context) (*PassSummary, error) {
	c.work.RLock()
	defer c.work.RUnlock()
	summary, err := c.engine.SyncAll(ctx)
	if summary != nil {
		c.refresh(ctx)
	}
	return summary, err
}

// GetUnsyncedData returns every row not yet on the remote.
func (c *Core) GetUnsyncedData(ctx context.Context) (*UnsyncedData, error) {
	return c.engine.Unsynced(ctx)
}

// ResetOptions guards ResetLocalDatabase.
type ResetOptions struct {
	// Confirmed must be set by an explicit user action.
	Confirmed bool
	// Force allows discarding rows that were never synced.
	Force bool
}

// ResetLocalDatabase drops and recreates every local table and clears the
// mirror. Identifiers start again at 1 afterwards. It waits for running
// sync passes and record writes to finish, and holds new ones off until the
// reset is done.
func (c *Core) ResetLocalDatabase(ctx context.Context, opts ResetOptions) error {
	if !opts.Confirmed {
		return ErrResetNotConfirmed
	}

	// Wait for in-flight passes and pushes.
	c.work.Lock()
	defer c.work.Unlock()

	if !opts.Force {
		n, err := c.unsyncedCount(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d rows would be lost", ErrUnsyncedData, n)
		}
	}

	c.logger.Printf("Resetting local database %s", c.local.Path())
	if err := c.local.Reset(ctx, c.logger); err != nil {
		return fmt.Errorf("failed to reset local database: %w", err)
	}
	c.mirror.Clear()
	if c.events != nil {
		c.events.Reset()
	}
	return nil
}

// ===== Connectivity =====

// Online reports the last known connectivity state.
func (c *Core) Online() bool {
	return c.watcher.Online()
}

// WatchConnectivity feeds a platform connectivity stream to the watcher
// until ctx is done or states is closed.
func (c *Core) WatchConnectivity(ctx context.Context, states <-chan bool) error {
	return c.watcher.Watch(ctx, states)
}

// RunProbe probes the remote on the configured interval until ctx is done.
func (c *Core) RunProbe(ctx context.Context) error {
	if c.prober == nil {
		return remote.ErrNotConfigured
	}
	return c.watcher.Run(ctx, c.prober)
}

// Probe checks connectivity once and records the result. Coming online
// starts a catch-up pass in the background; Close waits for it.
func (c *Core) Probe(ctx context.Context) bool {
	if c.prober == nil {
		return false
	}
	timeout := c.cfg.Probe.Timeout
	if timeout <= 0 {
		timeout = netwatch.DefaultConfig().Timeout
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok := c.prober.Probe(pctx) == nil
	c.watcher.Observe(ctx, ok)
	return ok
}

// SetProbeInterval changes the interval of a running RunProbe.
func (c *Core) SetProbeInterval(d time.Duration) {
	c.watcher.SetInterval(d)
}

// ===== Inspection =====

// Mirror returns the in-memory collections.
func (c *Core) Mirror() *Mirror {
	return c.mirror
}

// Metrics returns the sync metrics.
func (c *Core) Metrics() *sync.Metrics {
	return c.metrics
}

// BootstrapRemote creates the remote tables when the remote supports it.
func (c *Core) BootstrapRemote(ctx context.Context) error {
	if c.store == nil {
		return remote.ErrNotConfigured
	}
	s, ok := c.store.(interface {
		EnsureSchema(ctx context.Context) error
	})
	if !ok {
		return fmt.Errorf("remote store cannot create its schema")
	}
	return s.EnsureSchema(ctx)
}

// TableStatus is the row count of one table.
type TableStatus struct {
	Table    string `json:"table"`
	Total    int    `json:"total"`
	Unsynced int    `json:"unsynced"`
}

// Status describes the local store.
type Status struct {
	DBPath           string        `json:"db_path"`
	DBSize           int64         `json:"db_size"`
	Online           bool          `json:"online"`
	RemoteConfigured bool          `json:"remote_configured"`
	Tables           []TableStatus `json:"tables"`
}

// Unsynced is the number of unsynced rows across all tables.
func (s *Status) Unsynced() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Unsynced
	}
	return n
}

// Status reports per-table counts and the database size.
func (c *Core) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		DBPath:           c.local.Path(),
		Online:           c.watcher.Online(),
		RemoteConfigured: c.store != nil,
	}
	size, err := c.local.Size()
	if err != nil {
		return nil, err
	}
	st.DBSize = size
	for _, table := range schema.SyncOrder {
		total, err := c.local.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		unsynced, err := c.local.CountUnsynced(ctx, table)
		if err != nil {
			return nil, err
		}
		st.Tables = append(st.Tables, TableStatus{Table: table, Total: total, Unsynced: unsynced})
	}
	return st, nil
}

func (c *Core) unsyncedCount(ctx context.Context) (int, error) {
	n := 0
	for _, table := range schema.SyncOrder {
		u, err := c.local.CountUnsynced(ctx, table)
		if err != nil {
			return 0, err
		}
		n += u
	}
	return n, nil
}

func (c *Core) refresh(ctx context.Context) {
	if err := c.mirror.Refresh(ctx, c.local); err != nil {
		c.logger.Printf("WARNING: Failed to refresh mirror: %v", err)
	}
}

