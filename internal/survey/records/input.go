package records

// The input types carry raw form values. Numeric and date fields are strings
// and are coerced by the DAO.

// HouseholdInput is the household form.
type HouseholdInput struct {
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
}

// MealPatternInput is the meal pattern form of one household.
type MealPatternInput struct {
	Breakfast            string `json:"breakfast"`
	Lunch                string `json:"lunch"`
	Dinner               string `json:"dinner"`
	FoodBeliefs          string `json:"food_beliefs"`
	HealthConsiderations string `json:"health_considerations"`
	SicknessResponse     string `json:"sickness_response"`
	CheckupFrequency     string `json:"checkup_frequency"`
}

// MemberInput is the family member form. When Relationship is "Other",
// OtherRelationship holds the free-text value that gets stored.
type MemberInput struct {
	HouseholdID       int64    `json:"household_id"`
	FirstName         string   `json:"first_name"`
	LastName          string   `json:"last_name"`
	Relationship      string   `json:"relationship"`
	OtherRelationship string   `json:"other_relationship"`
	Sex               string   `json:"sex"`
	DateOfBirth       string   `json:"date_of_birth"`
	HealthRisks       []string `json:"health_risks"`
	Weight            string   `json:"weight"`
	Height            string   `json:"height"`
	EducationLevel    string   `json:"education_level"`
}

// MemberPatch is a partial member update. Nil fields are left unchanged.
// An empty Weight or Height clears the measurement.
type MemberPatch struct {
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	Relationship      *string   `json:"relationship,omitempty"`
	OtherRelationship *string   `json:"other_relationship,omitempty"`
	Sex               *string   `json:"sex,omitempty"`
	DateOfBirth       *string   `json:"date_of_birth,omitempty"`
	HealthRisks       *[]string `json:"health_risks,omitempty"`
	Weight            *string   `json:"weight,omitempty"`
	Height            *string   `json:"height,omitempty"`
	EducationLevel    *string   `json:"education_level,omitempty"`
}

// HealthInfoInput is the member health form.
type HealthInfoInput struct {
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
}

// ImmunizationInput is the immunization form.
type ImmunizationInput struct {
	MemberID       int64  `json:"member_id"`
	HouseholdID    int64  `json:"household_id"`
	BCG            bool   `json:"bcg"`
	HepatitisB     bool   `json:"hepatitis_b"`
	Pentavalent    bool   `json:"pentavalent"`
	OralPolio      bool   `json:"oral_polio"`
	MeaslesRubella bool   `json:"measles_rubella"`
	Pneumococcal   bool   `json:"pneumococcal"`
	Remarks        string `json:"remarks"`
}
