// Package records is the write path for survey forms. Each operation
// validates and coerces a form, stores it locally as unsynced, and, when the
// device is online, pushes the new row straight away.
//
// The local write is the success condition. A failed push is logged and the
// row stays unsynced until the next sync pass.
package records

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hhsurvey/hhsync/internal/survey/localdb"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

// ErrDuplicateHousehold is returned, together with the existing id, when a
// household number is already on file.
var ErrDuplicateHousehold = errors.New("household number already exists")

// Connectivity reports whether the remote is currently reachable.
type Connectivity interface {
	Online() bool
}

// Pusher pushes one row to the remote and marks it synced on success.
type Pusher interface {
	PushRecord(ctx context.Context, r schema.Record) sync.RowResult
}

// Notifier is told about every saved row.
type Notifier interface {
	RecordSaved(table string, id int64, synced bool)
}

// DAO writes survey records.
type DAO struct {
	db       *localdb.DB
	pusher   Pusher
	net      Connectivity
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a DAO.
type Option func(*DAO)

// WithPush enables the immediate push of new rows while net reports online.
func WithPush(p Pusher, net Connectivity) Option {
	return func(d *DAO) {
		d.pusher = p
		d.net = net
	}
}

// WithNotifier reports saved rows to n.
func WithNotifier(n Notifier) Option {
	return func(d *DAO) { d.notifier = n }
}

// WithLogger sets the DAO logger.
func WithLogger(l *log.Logger) Option {
	return func(d *DAO) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the clock used for derived ages.
func WithClock(now func() time.Time) Option {
	return func(d *DAO) { d.now = now }
}

// New creates a DAO over the shared local store.
func New(db *localdb.DB, opts ...Option) *DAO {
	d := &DAO{
		db:     db,
		logger: log.New(os.Stderr, "[records] ", log.LstdFlags),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InsertHousehold stores a household and returns its id. If the household
// number is already on file, it returns the existing id and
// ErrDuplicateHousehold without writing anything.
func (d *DAO) InsertHousehold(ctx context.Context, in HouseholdInput) (int64, error) {
	h := &schema.Household{
		District:           strings.TrimSpace(in.District),
		Barangay:           strings.TrimSpace(in.Barangay),
		Sitio:              strings.TrimSpace(in.Sitio),
		HouseholdNumber:    strings.TrimSpace(in.HouseholdNumber),
		ToiletType:         in.ToiletType,
		WaterSource:        in.WaterSource,
		IncomeSource:       in.IncomeSource,
		HasVegetableGarden: in.HasVegetableGarden,
		RaisesLivestock:    in.RaisesLivestock,
		Is4PsMember:        in.Is4PsMember,
	}
	var err error
	if h.DateOfVisit, err = normalizeDate("date of visit", in.DateOfVisit); err != nil {
		return 0, err
	}
	if err := h.Validate(); err != nil {
		return 0, err
	}

	id, exists, err := d.db.FindHouseholdByNumber(ctx, h.HouseholdNumber)
	if err != nil {
		return 0, fmt.Errorf("failed to check household number: %w", err)
	}
	if exists {
		return id, fmt.Errorf("%w: %s", ErrDuplicateHousehold, h.HouseholdNumber)
	}

	if err := d.db.InsertHousehold(ctx, h); err != nil {
		d.logger.Printf("WARNING: Failed to save household %s: %v", h.HouseholdNumber, err)
		return 0, fmt.Errorf("failed to save household: %w", err)
	}
	d.afterInsert(ctx, h)
	return h.ID, nil
}

// InsertMealPattern stores the meal pattern of an existing household.
func (d *DAO) InsertMealPattern(ctx context.Context, householdID int64, in MealPatternInput) error {
	m := &schema.MealPattern{
		HouseholdID:          householdID,
		Breakfast:            in.Breakfast,
		Lunch:                in.Lunch,
		Dinner:               in.Dinner,
		FoodBeliefs:          in.FoodBeliefs,
		HealthConsiderations: in.HealthConsiderations,
		SicknessResponse:     in.SicknessResponse,
		CheckupFrequency:     in.CheckupFrequency,
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if err := d.db.InsertMealPattern(ctx, m); err != nil {
		d.logger.Printf("WARNING: Failed to save meal pattern for household %d: %v", householdID, err)
		return fmt.Errorf("failed to save meal pattern: %w", err)
	}
	d.afterInsert(ctx, m)
	return nil
}

// InsertMember stores a family member, deriving age and classification from
// the date of birth, and returns the new id.
func (d *DAO) InsertMember(ctx context.Context, in MemberInput) (int64, error) {
	m := &schema.Member{
		HouseholdID:    in.HouseholdID,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Relationship:   relationship(in.Relationship, in.OtherRelationship),
		Sex:            in.Sex,
		DateOfBirth:    in.DateOfBirth,
		WeightKg:       parseMeasure(in.Weight),
		HeightCm:       parseMeasure(in.Height),
		EducationLevel: in.EducationLevel,
	}
	risks, err := schema.JoinHealthRisks(in.HealthRisks)
	if err != nil {
		return 0, err
	}
	m.HealthRisks = risks

	if err := m.Validate(); err != nil {
		return 0, err
	}
	if err := m.Derive(d.now()); err != nil {
		return 0, err
	}
	if err := d.db.InsertMember(ctx, m); err != nil {
		d.logger.Printf("WARNING: Failed to save member %s: %v", m.FullName(), err)
		return 0, fmt.Errorf("failed to save member: %w", err)
	}
	d.afterInsert(ctx, m)
	return m.ID, nil
}

// UpdateResult reports the two halves of an update separately.
type UpdateResult struct {
	// Saved is true once the local row holds the new values.
	Saved bool `json:"saved"`
	// Pushed is true if the remote copy was updated in the same call.
	Pushed bool `json:"pushed"`
	// RemoteErr describes a failed or skipped push.
	RemoteErr string `json:"remote_error,omitempty"`
	Message   string `json:"message"`
}

// UpdateMemberData applies patch to member id. The row becomes unsynced. With
// push set, the update is also sent to the remote; a remote failure is
// reported in the result, not as an error.
func (d *DAO) UpdateMemberData(ctx context.Context, id int64, patch MemberPatch, push bool) (UpdateResult, error) {
	m, err := d.db.GetMember(ctx, id)
	if err != nil {
		return UpdateResult{Message: "member not found"}, err
	}
	if err := applyPatch(m, patch); err != nil {
		return UpdateResult{Message: err.Error()}, err
	}
	if err := m.Validate(); err != nil {
		return UpdateResult{Message: err.Error()}, err
	}
	if err := m.Derive(d.now()); err != nil {
		return UpdateResult{Message: err.Error()}, err
	}
	if err := d.db.UpdateMember(ctx, m); err != nil {
		d.logger.Printf("WARNING: Failed to update member %d: %v", id, err)
		return UpdateResult{Message: "failed to save locally"}, fmt.Errorf("failed to update member: %w", err)
	}
	d.notify(m, false)

	res := UpdateResult{Saved: true, Message: "saved locally"}
	if !push {
		return res, nil
	}
	if d.pusher == nil {
		res.RemoteErr = "remote not configured"
		res.Message = "saved locally; remote not configured"
		return res, nil
	}
	row := d.pusher.PushRecord(ctx, m)
	switch row.Outcome {
	case sync.Synced:
		res.Pushed = true
		res.Message = "saved and synced"
		d.notify(m, true)
	default:
		res.RemoteErr = row.Reason
		res.Message = "saved locally; remote update " + string(row.Outcome) + ": " + row.Reason
	}
	return res, nil
}

// InsertMemberHealthInfo stores a member's health profile and returns its id.
func (d *DAO) InsertMemberHealthInfo(ctx context.Context, in HealthInfoInput) (int64, error) {
	h := &schema.HealthInfo{
		MemberID:           in.MemberID,
		HouseholdID:        in.HouseholdID,
		PhilHealth:         in.PhilHealth,
		FamilyPlanning:     in.FamilyPlanning,
		Smoker:             in.Smoker,
		SmokerDetails:      detail(in.Smoker, in.SmokerDetails),
		DrinksAlcohol:      in.DrinksAlcohol,
		AlcoholDetails:     detail(in.DrinksAlcohol, in.AlcoholDetails),
		PhysicallyActive:   in.PhysicallyActive,
		ActivityDetails:    detail(in.PhysicallyActive, in.ActivityDetails),
		HasMorbidity:       in.HasMorbidity,
		MorbidityCondition: detail(in.HasMorbidity, in.MorbidityCondition),
	}
	var err error
	if h.LastMenstrualPeriod, err = normalizeDate("last menstrual period", in.LastMenstrualPeriod); err != nil {
		return 0, err
	}
	if err := h.Validate(); err != nil {
		return 0, err
	}
	if err := d.db.InsertHealthInfo(ctx, h); err != nil {
		d.logger.Printf("WARNING: Failed to save health info for member %d: %v", in.MemberID, err)
		return 0, fmt.Errorf("failed to save health info: %w", err)
	}
	d.afterInsert(ctx, h)
	return h.ID, nil
}

// InsertImmunization stores a member's immunization record and returns its id.
func (d *DAO) InsertImmunization(ctx context.Context, in ImmunizationInput) (int64, error) {
	i := &schema.Immunization{
		MemberID:       in.MemberID,
		HouseholdID:    in.HouseholdID,
		BCG:            in.BCG,
		HepatitisB:     in.HepatitisB,
		Pentavalent:    in.Pentavalent,
		OralPolio:      in.OralPolio,
		MeaslesRubella: in.MeaslesRubella,
		Pneumococcal:   in.Pneumococcal,
		Remarks:        strings.TrimSpace(in.Remarks),
	}
	if err := i.Validate(); err != nil {
		return 0, err
	}
	if err := d.db.InsertImmunization(ctx, i); err != nil {
		d.logger.Printf("WARNING: Failed to save immunization for member %d: %v", in.MemberID, err)
		return 0, fmt.Errorf("failed to save immunization: %w", err)
	}
	d.afterInsert(ctx, i)
	return i.ID, nil
}

// afterInsert pushes a fresh row when online. Failures only get logged.
func (d *DAO) afterInsert(ctx context.Context, r schema.Record) {
	synced := false
	if d.pusher != nil && d.net != nil && d.net.Online() {
		res := d.pusher.PushRecord(ctx, r)
		synced = res.Outcome == sync.Synced
		if !synced {
			d.logger.Printf("Saved %s/%d locally; push %s: %s", res.Table, res.ID, res.Outcome, res.Reason)
		}
	}
	d.notify(r, synced)
}

func (d *DAO) notify(r schema.Record, synced bool) {
	if d.notifier != nil {
		d.notifier.RecordSaved(r.TableName(), r.RecordID(), synced)
	}
}

func applyPatch(m *schema.Member, p MemberPatch) error {
	if p.FirstName != nil {
		m.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		m.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.Relationship != nil {
		other := ""
		if p.OtherRelationship != nil {
			other = *p.OtherRelationship
		}
		m.Relationship = relationship(*p.Relationship, other)
	}
	if p.Sex != nil {
		m.Sex = *p.Sex
	}
	if p.DateOfBirth != nil {
		m.DateOfBirth = *p.DateOfBirth
	}
	if p.HealthRisks != nil {
		risks, err := schema.JoinHealthRisks(*p.HealthRisks)
		if err != nil {
			return err
		}
		m.HealthRisks = risks
	}
	if p.Weight != nil {
		m.WeightKg = parseMeasure(*p.Weight)
	}
	if p.Height != nil {
		m.HeightCm = parseMeasure(*p.Height)
	}
	if p.EducationLevel != nil {
		m.EducationLevel = *p.EducationLevel
	}
	return nil
}

// relationship resolves the "Other" choice to its free-text value. Without
// one it stays "Other", which Member.Validate rejects.
func relationship(choice, other string) string {
	choice = strings.TrimSpace(choice)
	if choice == schema.RelationshipOther {
		if o := strings.TrimSpace(other); o != "" {
			return o
		}
	}
	return choice
}

// parseMeasure coerces an optional numeric form field. Anything that is not
// a finite non-negative number becomes nil.
func parseMeasure(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// detail drops the follow-up text when its yes/no question was answered no.
func detail(answer bool, text string) string {
	if !answer {
		return ""
	}
	return strings.TrimSpace(text)
}

func normalizeDate(field, s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	t, err := schema.ParseDate(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return schema.FormatDate(t), nil
}
