package schema

import (
	"strings"
)

// HealthRiskSeparator joins selected health risks in the health_risks column.
const HealthRiskSeparator = ", "

// HealthRisks is the fixed set of health-risk groupings, in display order.
var HealthRisks = []string{
	"Pregnant",
	"Lactating Mother",
	"Person with Disability",
	"With Chronic Illness",
	"Malnourished",
}

// EducationLevels is the fixed list of education levels.
var EducationLevels = []string{
	"No Formal Education",
	"Elementary Level",
	"Elementary Graduate",
	"High School Level",
	"High School Graduate",
	"Vocational",
	"College Level",
	"College Graduate",
	"Post Graduate",
}

// CheckupFrequencies is the set of accepted meal_patterns.checkup_frequency values.
var CheckupFrequencies = []string{
	"Monthly",
	"Quarterly",
	"Twice a year",
	"Yearly",
	"Only when sick",
	"Never",
}

// RelationshipOther is the relationship choice that requires free text.
const RelationshipOther = "Other"

// JoinHealthRisks validates the selection and returns the stored form in
// canonical order with duplicates removed. An empty selection yields "".
func JoinHealthRisks(selected []string) (string, error) {
	seen := make(map[string]bool, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !contains(HealthRisks, s) {
			return "", invalidf("unknown health risk %q", s)
		}
		seen[s] = true
	}

	var out []string
	for _, risk := range HealthRisks {
		if seen[risk] {
			out = append(out, risk)
		}
	}
	return strings.Join(out, HealthRiskSeparator), nil
}

// SplitHealthRisks is the inverse of JoinHealthRisks.
func SplitHealthRisks(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	parts := strings.Split(stored, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
