package events

import (
	"time"

	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

// RecordSavedData describes a locally saved row.
type RecordSavedData struct {
	Table  string `json:"table"`
	ID     int64  `json:"id"`
	Synced bool   `json:"synced"`
}

// SyncCompleteData summarizes a finished pass.
type SyncCompleteData struct {
	PassID   string        `json:"pass_id"`
	Synced   int           `json:"synced"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// ConnectivityData carries the new connectivity state.
type ConnectivityData struct {
	Connected bool `json:"connected"`
}

// RecordSaved implements records.Notifier.
func (s *Server) RecordSaved(table string, id int64, synced bool) {
	s.Publish(MessageTypeRecordSaved, RecordSavedData{Table: table, ID: id, Synced: synced})
}

// SyncComplete implements sync.Notifier.
func (s *Server) SyncComplete(p *sync.PassSummary) {
	c := p.Counts()
	s.Publish(MessageTypeSyncComplete, SyncCompleteData{
		PassID:   p.ID.String(),
		Synced:   c.Synced,
		Skipped:  c.Skipped,
		Failed:   c.Failed,
		Duration: p.Duration,
	})
}

// Connectivity announces an online/offline transition.
func (s *Server) Connectivity(connected bool) {
	s.Publish(MessageTypeConnectivity, ConnectivityData{Connected: connected})
}

// Reset announces a wiped local database.
func (s *Server) Reset() {
	s.Publish(MessageTypeReset, struct{}{})
}
