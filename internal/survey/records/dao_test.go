package records

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/hhsurvey/hhsync/internal/survey/localdb"
	"github.com/hhsurvey/hhsync/internal/survey/remote"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

var (
	quiet   = log.New(io.Discard, "", 0)
	fixedAt = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
)

type fakeNet struct{ online bool }

func (f *fakeNet) Online() bool { return f.online }

// failingPusher reports every push as failed.
type failingPusher struct{ calls int }

func (f *failingPusher) PushRecord(_ context.Context, r schema.Record) sync.RowResult {
	f.calls++
	return sync.RowResult{Table: r.TableName(), ID: r.RecordID(), Outcome: sync.Failed, Reason: "connection refused"}
}

type savedEvent struct {
	table  string
	id     int64
	synced bool
}

type recordingNotifier struct{ events []savedEvent }

func (r *recordingNotifier) RecordSaved(table string, id int64, synced bool) {
	r.events = append(r.events, savedEvent{table, id, synced})
}

func testLocal(t *testing.T) *localdb.DB {
	t.Helper()
	db, err := localdb.Open(filepath.Join(t.TempDir(), "survey.db"))
	if err != nil {
		t.Fatalf("localdb.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func testRemote(t *testing.T) *remote.SQLStore {
	t.Helper()
	store, err := remote.Open("sqlite://"+filepath.Join(t.TempDir(), "remote.db"), "")
	if err != nil {
		t.Fatalf("remote.Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() failed: %v", err)
	}
	return store
}

func newDAO(db *localdb.DB, opts ...Option) *DAO {
	opts = append([]Option{WithLogger(quiet), WithClock(func() time.Time { return fixedAt })}, opts...)
	return New(db, opts...)
}

func addHousehold(t *testing.T, d *DAO, number string) int64 {
	t.Helper()
	id, err := d.InsertHousehold(context.Background(), HouseholdInput{HouseholdNumber: number, District: "North"})
	if err != nil {
		t.Fatalf("InsertHousehold(%s) failed: %v", number, err)
	}
	return id
}

func addMember(t *testing.T, d *DAO, householdID int64, dob string) int64 {
	t.Helper()
	id, err := d.InsertMember(context.Background(), MemberInput{
		HouseholdID: householdID, FirstName: "Ana", LastName: "Cruz", DateOfBirth: dob,
	})
	if err != nil {
		t.Fatalf("InsertMember() failed: %v", err)
	}
	return id
}

func TestInsertHousehold_Duplicate(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()

	first := addHousehold(t, d, "HH-001")
	again, err := d.InsertHousehold(ctx, HouseholdInput{HouseholdNumber: " HH-001 "})
	if !errors.Is(err, ErrDuplicateHousehold) {
		t.Fatalf("InsertHousehold() error = %v, want ErrDuplicateHousehold", err)
	}
	if again != first {
		t.Errorf("duplicate returned id %d, want %d", again, first)
	}
	if n, _ := db.Count(ctx, schema.TableHouseholds); n != 1 {
		t.Errorf("households = %d, want 1", n)
	}
}

func TestInsertHousehold_Validation(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()

	tests := []struct {
		name string
		in   HouseholdInput
	}{
		{"missing number", HouseholdInput{District: "North"}},
		{"blank number", HouseholdInput{HouseholdNumber: "   "}},
		{"bad visit date", HouseholdInput{HouseholdNumber: "HH-002", DateOfVisit: "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.InsertHousehold(ctx, tt.in); !errors.Is(err, schema.ErrInvalid) {
				t.Errorf("InsertHousehold() error = %v, want ErrInvalid", err)
			}
		})
	}
	if n, _ := db.Count(ctx, schema.TableHouseholds); n != 0 {
		t.Errorf("households = %d after failed inserts, want 0", n)
	}
}

func TestInsertHousehold_NormalizesVisitDate(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	id, err := d.InsertHousehold(context.Background(), HouseholdInput{
		HouseholdNumber: "HH-003", DateOfVisit: "2024-03-01T08:30:00+08:00",
	})
	if err != nil {
		t.Fatalf("InsertHousehold() failed: %v", err)
	}
	h, err := db.GetHousehold(context.Background(), id)
	if err != nil {
		t.Fatalf("GetHousehold() failed: %v", err)
	}
	if h.DateOfVisit != "2024-03-01" {
		t.Errorf("DateOfVisit = %q, want 2024-03-01", h.DateOfVisit)
	}
}

func TestInsertMember_DerivesAgeAndClassification(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	hh := addHousehold(t, d, "HH-001")

	tests := []struct {
		dob       string
		wantAge   int
		wantClass string
	}{
		{"2024-06-05", 0, schema.ClassNewborn},
		{"2004-01-01", 20, schema.ClassAdult},
		{"1959-01-01", 65, schema.ClassSeniorAdult},
		{"2004-06-16", 19, schema.ClassAdult},
	}
	for _, tt := range tests {
		id := addMember(t, d, hh, tt.dob)
		m, err := db.GetMember(context.Background(), id)
		if err != nil {
			t.Fatalf("GetMember() failed: %v", err)
		}
		if m.Age != tt.wantAge || m.Classification != tt.wantClass {
			t.Errorf("dob %s: age=%d class=%q, want %d %q", tt.dob, m.Age, m.Classification, tt.wantAge, tt.wantClass)
		}
	}
}

func TestInsertMember_Coercion(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	hh := addHousehold(t, d, "HH-001")

	id, err := d.InsertMember(context.Background(), MemberInput{
		HouseholdID:       hh,
		FirstName:         " Ana ",
		LastName:          "Cruz",
		Relationship:      "Other",
		OtherRelationship: "Godchild",
		DateOfBirth:       "1990-04-01",
		HealthRisks:       []string{"Malnourished", "Pregnant", "Pregnant"},
		Weight:            "52.5",
		Height:            "tall",
	})
	if err != nil {
		t.Fatalf("InsertMember() failed: %v", err)
	}
	m, _ := db.GetMember(context.Background(), id)
	if m.FirstName != "Ana" {
		t.Errorf("FirstName = %q, want trimmed", m.FirstName)
	}
	if m.Relationship != "Godchild" {
		t.Errorf("Relationship = %q, want Godchild", m.Relationship)
	}
	if m.HealthRisks != "Pregnant, Malnourished" {
		t.Errorf("HealthRisks = %q", m.HealthRisks)
	}
	if m.WeightKg == nil || *m.WeightKg != 52.5 {
		t.Errorf("WeightKg = %v, want 52.5", m.WeightKg)
	}
	if m.HeightCm != nil {
		t.Errorf("HeightCm = %v, want nil for non-numeric input", *m.HeightCm)
	}
}

func TestInsertMember_Validation(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	hh := addHousehold(t, d, "HH-001")
	ctx := context.Background()

	tests := []struct {
		name string
		in   MemberInput
	}{
		{"missing dob", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B"}},
		{"bad dob", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B", DateOfBirth: "04/01/1990"}},
		{"missing first name", MemberInput{HouseholdID: hh, LastName: "B", DateOfBirth: "1990-04-01"}},
		{"unknown risk", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B", DateOfBirth: "1990-04-01", HealthRisks: []string{"Tired"}}},
		{"no household", MemberInput{FirstName: "A", LastName: "B", DateOfBirth: "1990-04-01"}},
		{"other without description", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B", DateOfBirth: "1990-04-01", Relationship: "Other"}},
		{"other with blank description", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B", DateOfBirth: "1990-04-01", Relationship: "Other", OtherRelationship: "  "}},
		{"born in the future", MemberInput{HouseholdID: hh, FirstName: "A", LastName: "B", DateOfBirth: "2999-01-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.InsertMember(ctx, tt.in); !errors.Is(err, schema.ErrInvalid) {
				t.Errorf("InsertMember() error = %v, want ErrInvalid", err)
			}
		})
	}
	if n, _ := db.Count(ctx, schema.TableMembers); n != 0 {
		t.Errorf("members = %d, want 0", n)
	}
}

func TestInsert_OfflineLeavesUnsynced(t *testing.T) {
	db := testLocal(t)
	pusher := &failingPusher{}
	d := newDAO(db, WithPush(pusher, &fakeNet{online: false}))

	addHousehold(t, d, "HH-001")
	if pusher.calls != 0 {
		t.Errorf("pusher called %d times while offline", pusher.calls)
	}
	if n, _ := db.CountUnsynced(context.Background(), schema.TableHouseholds); n != 1 {
		t.Errorf("unsynced households = %d, want 1", n)
	}
}

func TestInsert_OnlinePushesImmediately(t *testing.T) {
	db := testLocal(t)
	store := testRemote(t)
	engine := sync.New(db, store, sync.WithLogger(quiet))
	notes := &recordingNotifier{}
	d := newDAO(db, WithPush(engine, &fakeNet{online: true}), WithNotifier(notes))
	ctx := context.Background()

	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "1990-04-01")
	if _, err := d.InsertMemberHealthInfo(ctx, HealthInfoInput{MemberID: mid, HouseholdID: hh, PhilHealth: true}); err != nil {
		t.Fatalf("InsertMemberHealthInfo() failed: %v", err)
	}

	for _, table := range []string{schema.TableHouseholds, schema.TableMembers, schema.TableHealthInfo} {
		if n, _ := db.CountUnsynced(ctx, table); n != 0 {
			t.Errorf("%s unsynced = %d, want 0", table, n)
		}
		rows, err := store.Select(ctx, table, nil)
		if err != nil || len(rows) != 1 {
			t.Errorf("remote %s = %v, %v; want one row", table, rows, err)
		}
	}
	if len(notes.events) != 3 || !notes.events[0].synced {
		t.Errorf("notifier events = %+v, want three synced saves", notes.events)
	}
}

func TestInsert_PushFailureIsSwallowed(t *testing.T) {
	db := testLocal(t)
	pusher := &failingPusher{}
	d := newDAO(db, WithPush(pusher, &fakeNet{online: true}))

	id, err := d.InsertHousehold(context.Background(), HouseholdInput{HouseholdNumber: "HH-001"})
	if err != nil {
		t.Fatalf("InsertHousehold() should succeed despite push failure: %v", err)
	}
	if id != 1 || pusher.calls != 1 {
		t.Errorf("id=%d calls=%d, want 1 and 1", id, pusher.calls)
	}
	if n, _ := db.CountUnsynced(context.Background(), schema.TableHouseholds); n != 1 {
		t.Errorf("unsynced households = %d, want 1", n)
	}
}

func TestInsertMealPattern(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()
	hh := addHousehold(t, d, "HH-001")

	if err := d.InsertMealPattern(ctx, hh, MealPatternInput{Breakfast: "Rice", CheckupFrequency: "Monthly"}); err != nil {
		t.Fatalf("InsertMealPattern() failed: %v", err)
	}
	if err := d.InsertMealPattern(ctx, 0, MealPatternInput{}); !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("InsertMealPattern(0) error = %v, want ErrInvalid", err)
	}
	if err := d.InsertMealPattern(ctx, 99, MealPatternInput{}); err == nil {
		t.Error("InsertMealPattern() for unknown household should fail")
	}
	if n, _ := db.Count(ctx, schema.TableMealPatterns); n != 1 {
		t.Errorf("meal patterns = %d, want 1", n)
	}
}

func TestInsertMemberHealthInfo(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()
	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "1990-04-01")

	id, err := d.InsertMemberHealthInfo(ctx, HealthInfoInput{
		MemberID: mid, HouseholdID: hh,
		FamilyPlanning: true, LastMenstrualPeriod: "2024-05-20",
		Smoker: false, SmokerDetails: "used to",
		HasMorbidity: true, MorbidityCondition: " Hypertension ",
	})
	if err != nil {
		t.Fatalf("InsertMemberHealthInfo() failed: %v", err)
	}
	rows, _ := db.ListHealthInfo(ctx, false)
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("ListHealthInfo() = %v", rows)
	}
	if rows[0].SmokerDetails != "" || rows[0].MorbidityCondition != "Hypertension" {
		t.Errorf("details = %q/%q", rows[0].SmokerDetails, rows[0].MorbidityCondition)
	}

	_, err = d.InsertMemberHealthInfo(ctx, HealthInfoInput{
		MemberID: mid, HouseholdID: hh, LastMenstrualPeriod: "2024-05-20",
	})
	if !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("LMP without family planning error = %v, want ErrInvalid", err)
	}
}

func TestInsertImmunization(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()
	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "2024-01-10")

	id, err := d.InsertImmunization(ctx, ImmunizationInput{MemberID: mid, HouseholdID: hh, BCG: true, Remarks: "card seen"})
	if err != nil {
		t.Fatalf("InsertImmunization() failed: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if _, err := d.InsertImmunization(ctx, ImmunizationInput{HouseholdID: hh}); !errors.Is(err, schema.ErrInvalid) {
		t.Errorf("missing member error = %v, want ErrInvalid", err)
	}
}

func TestUpdateMemberData(t *testing.T) {
	db := testLocal(t)
	store := testRemote(t)
	engine := sync.New(db, store, sync.WithLogger(quiet))
	d := newDAO(db, WithPush(engine, &fakeNet{online: false}))
	ctx := context.Background()

	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "1990-04-01")
	if _, err := engine.SyncAll(ctx); err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}

	name, dob, weight := "Anna", "2010-01-01", ""
	res, err := d.UpdateMemberData(ctx, mid, MemberPatch{FirstName: &name, DateOfBirth: &dob, Weight: &weight}, false)
	if err != nil {
		t.Fatalf("UpdateMemberData() failed: %v", err)
	}
	if !res.Saved || res.Pushed {
		t.Errorf("result = %+v, want saved and not pushed", res)
	}
	m, _ := db.GetMember(ctx, mid)
	if m.Synced || m.Revision != 2 {
		t.Errorf("synced=%v revision=%d, want false and 2", m.Synced, m.Revision)
	}
	if m.FirstName != "Anna" || m.Age != 14 || m.Classification != schema.ClassYoungAdult {
		t.Errorf("member = %+v, want re-derived age and class", m)
	}

	res, err = d.UpdateMemberData(ctx, mid, MemberPatch{LastName: &name}, true)
	if err != nil {
		t.Fatalf("UpdateMemberData(push) failed: %v", err)
	}
	if !res.Saved || !res.Pushed {
		t.Errorf("result = %+v, want saved and pushed", res)
	}
	rows, _ := store.Select(ctx, schema.TableMembers, remote.Filter{"id": mid})
	if len(rows) != 1 || rows[0]["last_name"] != "Anna" || rows[0]["first_name"] != "Anna" {
		t.Errorf("remote member = %v", rows)
	}
}

func TestUpdateMemberData_RemoteFailureIsDistinct(t *testing.T) {
	db := testLocal(t)
	pusher := &failingPusher{}
	d := newDAO(db, WithPush(pusher, &fakeNet{online: false}))
	ctx := context.Background()
	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "1990-04-01")

	sex := "Female"
	res, err := d.UpdateMemberData(ctx, mid, MemberPatch{Sex: &sex}, true)
	if err != nil {
		t.Fatalf("UpdateMemberData() error = %v, want nil on remote failure", err)
	}
	if !res.Saved || res.Pushed || res.RemoteErr != "connection refused" {
		t.Errorf("result = %+v, want saved with remote error", res)
	}
}

func TestUpdateMemberData_Errors(t *testing.T) {
	db := testLocal(t)
	d := newDAO(db)
	ctx := context.Background()

	if _, err := d.UpdateMemberData(ctx, 42, MemberPatch{}, false); !errors.Is(err, localdb.ErrNotFound) {
		t.Errorf("missing member error = %v, want ErrNotFound", err)
	}

	hh := addHousehold(t, d, "HH-001")
	mid := addMember(t, d, hh, "1990-04-01")
	empty := ""
	res, err := d.UpdateMemberData(ctx, mid, MemberPatch{FirstName: &empty}, false)
	if !errors.Is(err, schema.ErrInvalid) || res.Saved {
		t.Errorf("UpdateMemberData() = %+v, %v; want ErrInvalid and not saved", res, err)
	}
	m, _ := db.GetMember(ctx, mid)
	if m.FirstName != "Ana" || m.Revision != 1 {
		t.Errorf("member changed after rejected update: %+v", m)
	}
}

func TestParseMeasure(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"", nil},
		{"abc", nil},
		{"-3", nil},
		{"NaN", nil},
		{"+Inf", nil},
		{" 61.2 ", ptr(61.2)},
		{"0", ptr(0)},
	}
	for _, tt := range tests {
		got := parseMeasure(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("parseMeasure(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func ptr(f float64) *float64 { return &f }
