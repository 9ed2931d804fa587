package schema

// HealthInfo is the health profile of one member. At most one per member is
// expected, but the store does not enforce it.
type HealthInfo struct {
	ID                  int64  `json:"id"`
	MemberID            int64  `json:"member_id"`
	HouseholdID         int64  `json:"household_id"`
	PhilHealth          bool   `json:"philhealth"`
	FamilyPlanning      bool   `json:"family_planning"`
	LastMenstrualPeriod string `json:"last_menstrual_period"`
	Smoker              bool   `json:"smoker"`
	SmokerDetails       string `json:"smoker_details"`
	DrinksAlcohol       bool   `json:"drinks_alcohol"`
	AlcoholDetails      string `json:"alcohol_details"`
	PhysicallyActive    bool   `json:"physically_active"`
	ActivityDetails     string `json:"activity_details"`
	HasMorbidity        bool   `json:"has_morbidity"`
	MorbidityCondition  string `json:"morbidity_condition"`

	Synced   bool  `json:"synced"`
	Revision int64 `json:"revision"`
}

// Validate checks both parent references and the conditional LMP date.
func (h *HealthInfo) Validate() error {
	if err := requireID("member id", h.MemberID); err != nil {
		return err
	}
	if err := requireID("household id", h.HouseholdID); err != nil {
		return err
	}
	if !h.FamilyPlanning && h.LastMenstrualPeriod != "" {
		return invalidf("last menstrual period is only recorded with family planning")
	}
	return optionalDate("last menstrual period", h.LastMenstrualPeriod)
}

func (h *HealthInfo) TableName() string     { return TableHealthInfo }
func (h *HealthInfo) RecordID() int64       { return h.ID }
func (h *HealthInfo) RecordRevision() int64 { return h.Revision }

func (h *HealthInfo) Parents() []Ref {
	return []Ref{
		{Table: TableMembers, ID: h.MemberID},
		{Table: TableHouseholds, ID: h.HouseholdID},
	}
}

func (h *HealthInfo) Columns() []string {
	return []string{
		"id", "member_id", "household_id", "philhealth", "family_planning",
		"last_menstrual_period", "smoker", "smoker_details", "drinks_alcohol",
		"alcohol_details", "physically_active", "activity_details",
		"has_morbidity", "morbidity_condition",
	}
}

func (h *HealthInfo) Values() []any {
	return []any{
		h.ID, h.MemberID, h.HouseholdID, h.PhilHealth, h.FamilyPlanning,
		h.LastMenstrualPeriod, h.Smoker, h.SmokerDetails, h.DrinksAlcohol,
		h.AlcoholDetails, h.PhysicallyActive, h.ActivityDetails,
		h.HasMorbidity, h.MorbidityCondition,
	}
}

// Immunization records the six tracked vaccines for one member.
type Immunization struct {
	ID             int64  `json:"id"`
	MemberID       int64  `json:"member_id"`
	HouseholdID    int64  `json:"household_id"`
	BCG            bool   `json:"bcg"`
	HepatitisB     bool   `json:"hepatitis_b"`
	Pentavalent    bool   `json:"pentavalent"`
	OralPolio      bool   `json:"oral_polio"`
	MeaslesRubella bool   `json:"measles_rubella"`
	Pneumococcal   bool   `json:"pneumococcal"`
	Remarks        string `json:"remarks"`

	Synced   bool  `json:"synced"`
	Revision int64 `json:"revision"`
}

// Validate checks both parent references.
func (i *Immunization) Validate() error {
	if err := requireID("member id", i.MemberID); err != nil {
		return err
	}
	return requireID("household id", i.HouseholdID)
}

func (i *Immunization) TableName() string     { return TableImmunization }
func (i *Immunization) RecordID() int64       { return i.ID }
func (i *Immunization) RecordRevision() int64 { return i.Revision }

func (i *Immunization) Parents() []Ref {
	return []Ref{
		{Table: TableMembers, ID: i.MemberID},
		{Table: TableHouseholds, ID: i.HouseholdID},
	}
}

func (i *Immunization) Columns() []string {
	return []string{
		"id", "member_id", "household_id", "bcg", "hepatitis_b", "pentavalent",
		"oral_polio", "measles_rubella", "pneumococcal", "remarks",
	}
}

func (i *Immunization) Values() []any {
	return []any{
		i.ID, i.MemberID, i.HouseholdID, i.BCG, i.HepatitisB, i.Pentavalent,
		i.OralPolio, i.MeaslesRubella, i.Pneumococcal, i.Remarks,
	}
}
