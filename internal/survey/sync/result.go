package sync

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is what happened to one row during a pass.
type Outcome string

const (
	Synced  Outcome = "synced"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// RowResult reports the fate of a single row.
type RowResult struct {
	Table   string  `json:"table"`
	ID      int64   `json:"id"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// PassSummary collects the row results of one sync pass.
type PassSummary struct {
	ID       uuid.UUID     `json:"id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Rows     []RowResult   `json:"rows"`
}

// Counts tallies outcomes.
type Counts struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Counts returns the number of rows per outcome.
func (p *PassSummary) Counts() Counts {
	var c Counts
	for _, r := range p.Rows {
		switch r.Outcome {
		case Synced:
			c.Synced++
		case Skipped:
			c.Skipped++
		case Failed:
			c.Failed++
		}
	}
	return c
}

// Find returns the result for table/id, if the pass touched that row.
func (p *PassSummary) Find(table string, id int64) (RowResult, bool) {
	for _, r := range p.Rows {
		if r.Table == table && r.ID == id {
			return r, true
		}
	}
	return RowResult{}, false
}
