package schema

// Household is one visited household. HouseholdNumber is unique per device.
type Household struct {
	ID                 int64  `json:"id"`
	District           string `json:"district"`
	Barangay           string `json:"barangay"`
	Sitio              string `json:"sitio"`
	HouseholdNumber    string `json:"household_number"`
	DateOfVisit        string `json:"date_of_visit"`
	ToiletType         string `json:"toilet_type"`
	WaterSource        string `json:"water_source"`
	IncomeSource       string `json:"income_source"`
	HasVegetableGarden bool   `json:"has_vegetable_garden"`
	RaisesLivestock    bool   `json:"raises_livestock"`
	Is4PsMember        bool   `json:"is_4ps_member"`

	Synced   bool  `json:"synced"`
	Revision int64 `json:"revision"`
}

// Validate checks required fields and date formats.
func (h *Household) Validate() error {
	if err := requireText("household number", h.HouseholdNumber); err != nil {
		return err
	}
	return optionalDate("date of visit", h.DateOfVisit)
}

func (h *Household) TableName() string     { return TableHouseholds }
func (h *Household) RecordID() int64       { return h.ID }
func (h *Household) RecordRevision() int64 { return h.Revision }
func (h *Household) Parents() []Ref        { return nil }

func (h *Household) Columns() []string {
	return []string{
		"id", "district", "barangay", "sitio", "household_number", "date_of_visit",
		"toilet_type", "water_source", "income_source",
		"has_vegetable_garden", "raises_livestock", "is_4ps_member",
	}
}

func (h *Household) Values() []any {
	return []any{
		h.ID, h.District, h.Barangay, h.Sitio, h.HouseholdNumber, h.DateOfVisit,
		h.ToiletType, h.WaterSource, h.IncomeSource,
		h.HasVegetableGarden, h.RaisesLivestock, h.Is4PsMember,
	}
}

// MealPattern records a household's eating and health-seeking habits.
type MealPattern struct {
	ID                   int64  `json:"id"`
	HouseholdID          int64  `json:"household_id"`
	Breakfast            string `json:"breakfast"`
	Lunch                string `json:"lunch"`
	Dinner               string `json:"dinner"`
	FoodBeliefs          string `json:"food_beliefs"`
	HealthConsiderations string `json:"health_considerations"`
	SicknessResponse     string `json:"sickness_response"`
	CheckupFrequency     string `json:"checkup_frequency"`

	Synced   bool  `json:"synced"`
	Revision int64 `json:"revision"`
}

// Validate checks the household reference and the checkup frequency.
func (m *MealPattern) Validate() error {
	if err := requireID("household id", m.HouseholdID); err != nil {
		return err
	}
	if m.CheckupFrequency != "" && !contains(CheckupFrequencies, m.CheckupFrequency) {
		return invalidf("unknown checkup frequency %q", m.CheckupFrequency)
	}
	return nil
}

func (m *MealPattern) TableName() string     { return TableMealPatterns }
func (m *MealPattern) RecordID() int64       { return m.ID }
func (m *MealPattern) RecordRevision() int64 { return m.Revision }

func (m *MealPattern) Parents() []Ref {
	return []Ref{{Table: TableHouseholds, ID: m.HouseholdID}}
}

func (m *MealPattern) Columns() []string {
	return []string{
		"id", "household_id", "breakfast", "lunch", "dinner",
		"food_beliefs", "health_considerations", "sickness_response", "checkup_frequency",
	}
}

func (m *MealPattern) Values() []any {
	return []any{
		m.ID, m.HouseholdID, m.Breakfast, m.Lunch, m.Dinner,
		m.FoodBeliefs, m.HealthConsiderations, m.SicknessResponse, m.CheckupFrequency,
	}
}
