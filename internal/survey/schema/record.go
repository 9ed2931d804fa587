package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Table names. These are also the remote table names.
const (
	TableHouseholds   = "households"
	TableMembers      = "members"
	TableMealPatterns = "meal_patterns"
	TableHealthInfo   = "member_health_info"
	TableImmunization = "immunizations"
)

// SyncOrder lists the tables parents-first. A sync pass walks them in this
// order; a reset drops them in reverse.
var SyncOrder = []string{
	TableHouseholds,
	TableMembers,
	TableMealPatterns,
	TableHealthInfo,
	TableImmunization,
}

// DateLayout is the storage format for every date column.
const DateLayout = "2006-01-02"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid record")

// Ref points at a parent row that must exist remotely before a dependent
// row can be pushed.
type Ref struct {
	Table string
	ID    int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.Table, r.ID)
}

// Record is implemented by all five entity types so the sync engine can push
// them without knowing their shape.
type Record interface {
	TableName() string
	RecordID() int64
	RecordRevision() int64
	// Columns returns the pushed column names, id first. Local bookkeeping
	// columns (synced, revision) are excluded.
	Columns() []string
	// Values returns the column values in Columns order.
	Values() []any
	// Parents returns the rows this record references.
	Parents() []Ref
}

// ParseDate parses a stored or user-entered date. Full RFC3339 timestamps are
// accepted and truncated to the date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is empty", ErrInvalid)
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a valid date (want YYYY-MM-DD)", ErrInvalid, s)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalidf("%s is required", field)
	}
	return nil
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return invalidf("%s is required", field)
	}
	return nil
}

func optionalDate(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, err := ParseDate(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
