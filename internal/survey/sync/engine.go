package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/hhsurvey/hhsync/internal/survey/localdb"
	"github.com/hhsurvey/hhsync/internal/survey/remote"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
)

// Notifier is told about every finished pass.
type Notifier interface {
	SyncComplete(summary *PassSummary)
}

// Engine runs sync passes between the local store and a remote store.
type Engine struct {
	local    *localdb.DB
	remote   remote.Store
	logger   *log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time

	group singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records pass and row counts on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNotifier reports finished passes to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// New creates an Engine. store may be nil when no remote is configured, in
// which case SyncAll and PushRecord report remote.ErrNotConfigured.
func New(local *localdb.DB, store remote.Store, opts ...Option) *Engine {
	e := &Engine{
		local:  local,
		remote: store,
		logger: log.New(os.Stderr, "[sync] ", log.LstdFlags),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncAll runs one full pass over every table. If a pass is already running
// the call waits for it and returns its summary instead of starting another.
//
// The returned error covers local read failures and context cancellation
// only; remote failures are reported per row in the summary.
func (e *Engine) SyncAll(ctx context.Context) (*PassSummary, error) {
	if e.remote == nil {
		return nil, remote.ErrNotConfigured
	}
	v, err, shared := e.group.Do("pass", func() (any, error) {
		return e.pass(ctx)
	})
	if shared {
		e.logger.Printf("Joined in-flight sync pass")
	}
	summary, _ := v.(*PassSummary)
	return summary, err
}

func (e *Engine) pass(ctx context.Context) (*PassSummary, error) {
	summary := &PassSummary{ID: uuid.New(), Started: e.now()}
	e.logger.Printf("Starting sync pass %s", summary.ID)

	var errs []error
tables:
	for _, table := range schema.SyncOrder {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		recs, err := e.local.Unsynced(ctx, table)
		if err != nil {
			e.logger.Printf("WARNING: Failed to read unsynced %s: %v", table, err)
			errs = append(errs, fmt.Errorf("failed to read unsynced %s: %w", table, err))
			continue
		}
		for _, r := range recs {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break tables
			}
			res := e.push(ctx, r)
			summary.Rows = append(summary.Rows, res)
			e.metrics.observeRow(res)
		}
	}

	summary.Duration = e.now().Sub(summary.Started)
	e.metrics.observePass(summary)
	c := summary.Counts()
	e.logger.Printf("Sync pass %s complete: synced=%d skipped=%d failed=%d (%s)",
		summary.ID, c.Synced, c.Skipped, c.Failed, summary.Duration.Round(time.Millisecond))
	if e.notifier != nil {
		e.notifier.SyncComplete(summary)
	}
	return summary, errors.Join(errs...)
}

// PushRecord pushes a single, freshly written row. It applies the same parent
// check and revision guard as a full pass.
func (e *Engine) PushRecord(ctx context.Context, r schema.Record) RowResult {
	if e.remote == nil {
		return RowResult{Table: r.TableName(), ID: r.RecordID(), Outcome: Failed, Reason: remote.ErrNotConfigured.Error()}
	}
	res := e.push(ctx, r)
	e.metrics.observeRow(res)
	return res
}

func (e *Engine) push(ctx context.Context, r schema.Record) RowResult {
	res := RowResult{Table: r.TableName(), ID: r.RecordID()}

	for _, p := range r.Parents() {
		ok, err := e.remote.Exists(ctx, p.Table, p.ID)
		if err != nil {
			e.logger.Printf("WARNING: Failed to check parent %s of %s/%d: %v", p, res.Table, res.ID, err)
			res.Outcome, res.Reason = Failed, err.Error()
			return res
		}
		if !ok {
			e.logger.Printf("WARNING: Skipping %s/%d: parent %s not yet on remote", res.Table, res.ID, p)
			res.Outcome, res.Reason = Skipped, fmt.Sprintf("parent %s not synced", p)
			return res
		}
	}

	if err := e.remote.Upsert(ctx, res.Table, r.Columns(), r.Values()); err != nil {
		e.logger.Printf("WARNING: Failed to push %s/%d: %v", res.Table, res.ID, err)
		res.Outcome, res.Reason = Failed, err.Error()
		return res
	}

	marked, err := e.local.MarkSynced(ctx, res.Table, res.ID, r.RecordRevision())
	if err != nil {
		e.logger.Printf("WARNING: Pushed %s/%d but failed to mark it synced: %v", res.Table, res.ID, err)
		res.Outcome, res.Reason = Failed, err.Error()
		return res
	}
	if !marked {
		// Edited while in flight; the newer revision goes out next pass.
		res.Outcome, res.Reason = Skipped, "changed locally during push"
		return res
	}

	res.Outcome = Synced
	return res
}

// UnsyncedData holds every row that has not reached the remote yet.
type UnsyncedData struct {
	Households    []*schema.Household    `json:"households"`
	Members       []*schema.Member       `json:"members"`
	MealPatterns  []*schema.MealPattern  `json:"meal_patterns"`
	HealthInfo    []*schema.HealthInfo   `json:"member_health_info"`
	Immunizations []*schema.Immunization `json:"immunizations"`
}

// Total is the number of unsynced rows across all tables.
func (u *UnsyncedData) Total() int {
	return len(u.Households) + len(u.Members) + len(u.MealPatterns) +
		len(u.HealthInfo) + len(u.Immunizations)
}

// Unsynced reads all unsynced rows. It does not touch the remote.
func (e *Engine) Unsynced(ctx context.Context) (*UnsyncedData, error) {
	var (
		u   UnsyncedData
		err error
	)
	if u.Households, err = e.local.ListHouseholds(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to list unsynced households: %w", err)
	}
	if u.Members, err = e.local.ListMembers(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to list unsynced members: %w", err)
	}
	if u.MealPatterns, err = e.local.ListMealPatterns(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to list unsynced meal patterns: %w", err)
	}
	if u.HealthInfo, err = e.local.ListHealthInfo(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to list unsynced health info: %w", err)
	}
	if u.Immunizations, err = e.local.ListImmunizations(ctx, true); err != nil {
		return nil, fmt.Errorf("failed to list unsynced immunizations: %w", err)
	}
	return &u, nil
}
