package schema

import "strings"

// Member is one person in a household. Age and Classification are derived
// from DateOfBirth when the row is written.
type Member struct {
	ID             int64    `json:"id"`
	HouseholdID    int64    `json:"household_id"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Relationship   string   `json:"relationship"`
	Sex            string   `json:"sex"`
	DateOfBirth    string   `json:"date_of_birth"`
	Age            int      `json:"age"`
	Classification string   `json:"classification"`
	HealthRisks    string   `json:"health_risks"`
	WeightKg       *float64 `json:"weight_kg,omitempty"`
	HeightCm       *float64 `json:"height_cm,omitempty"`
	EducationLevel string   `json:"education_level"`

	Synced   bool  `json:"synced"`
	Revision int64 `json:"revision"`
}

// Validate checks required fields, the date of birth and the enumerations.
func (m *Member) Validate() error {
	if err := requireID("household id", m.HouseholdID); err != nil {
		return err
	}
	if err := requireText("first name", m.FirstName); err != nil {
		return err
	}
	if err := requireText("last name", m.LastName); err != nil {
		return err
	}
	if m.Relationship == RelationshipOther {
		return invalidf("relationship %q needs a description", RelationshipOther)
	}
	if strings.TrimSpace(m.DateOfBirth) == "" {
		return invalidf("date of birth is required")
	}
	if _, err := ParseDate(m.DateOfBirth); err != nil {
		return err
	}
	if m.EducationLevel != "" && !contains(EducationLevels, m.EducationLevel) {
		return invalidf("unknown education level %q", m.EducationLevel)
	}
	if _, err := JoinHealthRisks(SplitHealthRisks(m.HealthRisks)); err != nil {
		return err
	}
	if m.WeightKg != nil && *m.WeightKg < 0 {
		return invalidf("weight cannot be negative")
	}
	if m.HeightCm != nil && *m.HeightCm < 0 {
		return invalidf("height cannot be negative")
	}
	return nil
}

// FullName returns "First Last".
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m *Member) TableName() string     { return TableMembers }
func (m *Member) RecordID() int64       { return m.ID }
func (m *Member) RecordRevision() int64 { return m.Revision }

func (m *Member) Parents() []Ref {
	return []Ref{{Table: TableHouseholds, ID: m.HouseholdID}}
}

func (m *Member) Columns() []string {
	return []string{
		"id", "household_id", "first_name", "last_name", "relationship", "sex",
		"date_of_birth", "age", "classification", "health_risks",
		"weight_kg", "height_cm", "education_level",
	}
}

func (m *Member) Values() []any {
	return []any{
		m.ID, m.HouseholdID, m.FirstName, m.LastName, m.Relationship, m.Sex,
		m.DateOfBirth, m.Age, m.Classification, m.HealthRisks,
		floatOrNil(m.WeightKg), floatOrNil(m.HeightCm), m.EducationLevel,
	}
}

// floatOrNil keeps NULL columns NULL on both sides of a push.
func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
