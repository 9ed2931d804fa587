package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestHousehold_Validate(t *testing.T) {
	tests := []struct {
		name    string
		h       Household
		wantErr string
	}{
		{"valid", Household{HouseholdNumber: "HH-001", DateOfVisit: "2024-05-01"}, ""},
		{"missing number", Household{Sitio: "Sitio A"}, "household number is required"},
		{"blank number", Household{HouseholdNumber: "   "}, "household number is required"},
		{"bad visit date", Household{HouseholdNumber: "HH-1", DateOfVisit: "05/01/2024"}, "not a valid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, tt.h.Validate(), tt.wantErr)
		})
	}
}

func TestMember_Validate(t *testing.T) {
	weight := -1.0
	valid := Member{HouseholdID: 1, FirstName: "Ana", LastName: "Cruz", DateOfBirth: "2000-01-02"}

	tests := []struct {
		name    string
		mutate  func(m *Member)
		wantErr string
	}{
		{"valid", func(m *Member) {}, ""},
		{"missing household", func(m *Member) { m.HouseholdID = 0 }, "household id is required"},
		{"missing first name", func(m *Member) { m.FirstName = "" }, "first name is required"},
		{"missing last name", func(m *Member) { m.LastName = "" }, "last name is required"},
		{"missing dob", func(m *Member) { m.DateOfBirth = "" }, "date of birth is required"},
		{"bad dob", func(m *Member) { m.DateOfBirth = "yesterday" }, "not a valid date"},
		{"bad education", func(m *Member) { m.EducationLevel = "PhD" }, "unknown education level"},
		{"bad risk", func(m *Member) { m.HealthRisks = "Pregnant, Tired" }, "unknown health risk"},
		{"negative weight", func(m *Member) { m.WeightKg = &weight }, "weight cannot be negative"},
		{"known risks", func(m *Member) { m.HealthRisks = "Pregnant, Malnourished" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			checkValidation(t, m.Validate(), tt.wantErr)
		})
	}
}

func TestHealthInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		h       HealthInfo
		wantErr string
	}{
		{"valid", HealthInfo{MemberID: 1, HouseholdID: 1}, ""},
		{"with lmp", HealthInfo{MemberID: 1, HouseholdID: 1, FamilyPlanning: true, LastMenstrualPeriod: "2024-01-10"}, ""},
		{"lmp without family planning", HealthInfo{MemberID: 1, HouseholdID: 1, LastMenstrualPeriod: "2024-01-10"}, "only recorded with family planning"},
		{"bad lmp", HealthInfo{MemberID: 1, HouseholdID: 1, FamilyPlanning: true, LastMenstrualPeriod: "Jan"}, "not a valid date"},
		{"missing member", HealthInfo{HouseholdID: 1}, "member id is required"},
		{"missing household", HealthInfo{MemberID: 1}, "household id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkValidation(t, tt.h.Validate(), tt.wantErr)
		})
	}
}

func TestMealPattern_Validate(t *testing.T) {
	checkValidation(t, (&MealPattern{HouseholdID: 3, CheckupFrequency: "Yearly"}).Validate(), "")
	checkValidation(t, (&MealPattern{HouseholdID: 3, CheckupFrequency: "Weekly"}).Validate(), "unknown checkup frequency")
	checkValidation(t, (&MealPattern{}).Validate(), "household id is required")
	checkValidation(t, (&Immunization{MemberID: 2}).Validate(), "household id is required")
}

func TestRecord_ColumnsMatchValues(t *testing.T) {
	records := []Record{
		&Household{}, &MealPattern{}, &Member{}, &HealthInfo{}, &Immunization{},
	}
	for _, r := range records {
		if len(r.Columns()) != len(r.Values()) {
			t.Errorf("%s: %d columns but %d values", r.TableName(), len(r.Columns()), len(r.Values()))
		}
		if r.Columns()[0] != "id" {
			t.Errorf("%s: first column = %q, want id", r.TableName(), r.Columns()[0])
		}
	}
}

func TestRecord_Parents(t *testing.T) {
	hi := &HealthInfo{MemberID: 7, HouseholdID: 3}
	parents := hi.Parents()
	if len(parents) != 2 {
		t.Fatalf("Parents() returned %d refs, want 2", len(parents))
	}
	if parents[0] != (Ref{Table: TableMembers, ID: 7}) {
		t.Errorf("first parent = %v, want members#7", parents[0])
	}
	if len((&Household{}).Parents()) != 0 {
		t.Error("households should have no parents")
	}
}

func TestJoinHealthRisks(t *testing.T) {
	got, err := JoinHealthRisks([]string{"Malnourished", "Pregnant", "Pregnant", " "})
	if err != nil {
		t.Fatalf("JoinHealthRisks() failed: %v", err)
	}
	if got != "Pregnant, Malnourished" {
		t.Errorf("JoinHealthRisks() = %q, want canonical order without duplicates", got)
	}

	if got, _ := JoinHealthRisks(nil); got != "" {
		t.Errorf("JoinHealthRisks(nil) = %q, want empty", got)
	}

	if _, err := JoinHealthRisks([]string{"Sleepy"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("JoinHealthRisks() error = %v, want ErrInvalid", err)
	}

	split := SplitHealthRisks("Pregnant, Malnourished")
	if len(split) != 2 || split[1] != "Malnourished" {
		t.Errorf("SplitHealthRisks() = %v", split)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29T15:04:05+08:00")
	if err != nil {
		t.Fatalf("ParseDate() failed: %v", err)
	}
	if FormatDate(d) != "2024-02-29" {
		t.Errorf("ParseDate() = %s, want 2024-02-29", FormatDate(d))
	}
	if _, err := ParseDate(""); !errors.Is(err, ErrInvalid) {
		t.Errorf("ParseDate(\"\") error = %v, want ErrInvalid", err)
	}
}

func checkValidation(t *testing.T, err error, want string) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Errorf("Validate() expected error containing %q, got nil", want)
		return
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Validate() error = %v, does not wrap ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), want) {
		t.Errorf("Validate() error = %v, want error containing %q", err, want)
	}
}
