package schema

import "time"

// Classification labels, in rule priority order.
const (
	ClassNewborn     = "Newborn (0-60 days)"
	ClassInfant      = "Infant (61 days-11months)"
	ClassUnderFive   = "Under 5 (1-4 years old)"
	ClassSchoolAged  = "School Aged Children (5-9 years old)"
	ClassYoungAdult  = "Young adult (10-17 years old)"
	ClassAdult       = "Adult 18-59 years old"
	ClassSeniorAdult = "Senior citizen (60 years old above)"
)

// Classifications lists every label Classify can return.
var Classifications = []string{
	ClassNewborn,
	ClassInfant,
	ClassUnderFive,
	ClassSchoolAged,
	ClassYoungAdult,
	ClassAdult,
	ClassSeniorAdult,
}

// AgeOn returns the age in whole years at now: the year difference, minus one
// when the birthday has not come around yet this year.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// AgeInDays is the calendar-day difference between dob and now.
func AgeInDays(dob, now time.Time) int {
	d := time.Date(dob.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC)
	n := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(n.Sub(d).Hours() / 24)
}

// Classify returns the age band for a member born on dob, evaluated at now.
// The first matching rule wins.
func Classify(dob, now time.Time) string {
	days := AgeInDays(dob, now)
	years := AgeOn(dob, now)

	switch {
	case days <= 60:
		return ClassNewborn
	case days <= 335:
		return ClassInfant
	case years < 5:
		return ClassUnderFive
	case years < 10:
		return ClassSchoolAged
	case years < 17:
		return ClassYoungAdult
	case years < 60:
		return ClassAdult
	default:
		return ClassSeniorAdult
	}
}

// Derive fills Age and Classification from DateOfBirth. A birth date after
// now's calendar day is invalid.
func (m *Member) Derive(now time.Time) error {
	dob, err := ParseDate(m.DateOfBirth)
	if err != nil {
		return err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dob.After(today) {
		return invalidf("date of birth %s is in the future", FormatDate(dob))
	}
	m.DateOfBirth = FormatDate(dob)
	m.Age = AgeOn(dob, now)
	m.Classification = Classify(dob, now)
	return nil
}
