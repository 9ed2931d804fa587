package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/hhsurvey/hhsync/internal/survey/core"
	"github.com/hhsurvey/hhsync/internal/survey/records"
)

var householdCmd = &cobra.Command{
	Use:     "household",
	GroupID: "records",
	Short:   "Record households",
}

var householdAddCmd = &cobra.Command{
	Use:   "add <household-number>",
	Short: "Record a visited household",
	Long: `Record a visited household. The household number must be unique on
this device; re-entering an existing number reports the existing id.

--visited accepts YYYY-MM-DD or phrases like "today" or "last friday".`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		visited, err := parseDateFlag(mustString(f.GetString("visited")), time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		in := core.HouseholdInput{
			HouseholdNumber:    args[0],
			District:           mustString(f.GetString("district")),
			Barangay:           mustString(f.GetString("barangay")),
			Sitio:              mustString(f.GetString("sitio")),
			DateOfVisit:        visited,
			ToiletType:         mustString(f.GetString("toilet")),
			WaterSource:        mustString(f.GetString("water")),
			IncomeSource:       mustString(f.GetString("income")),
			HasVegetableGarden: mustBool(f.GetBool("garden")),
			RaisesLivestock:    mustBool(f.GetBool("livestock")),
			Is4PsMember:        mustBool(f.GetBool("4ps")),
		}
		withCore(true, func(ctx context.Context, c *core.Core) error {
			id, err := c.InsertHousehold(ctx, in)
			if errors.Is(err, records.ErrDuplicateHousehold) {
				fmt.Printf("%s Household %s already recorded as id %d\n",
					renderWarn("!"), in.HouseholdNumber, id)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s Recorded household %s (id %s)%s\n",
				renderPass("✓"), in.HouseholdNumber, renderAccent(strconv.FormatInt(id, 10)), syncNote(c))
			return nil
		})
	},
}

var mealCmd = &cobra.Command{
	Use:     "meal",
	GroupID: "records",
	Short:   "Record household meal patterns",
}

var mealAddCmd = &cobra.Command{
	Use:   "add <household-id>",
	Short: "Record the meal pattern of a household",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		householdID := parseID(args[0])
		f := cmd.Flags()
		in := core.MealPatternInput{
			Breakfast:            mustString(f.GetString("breakfast")),
			Lunch:                mustString(f.GetString("lunch")),
			Dinner:               mustString(f.GetString("dinner")),
			FoodBeliefs:          mustString(f.GetString("beliefs")),
			HealthConsiderations: mustString(f.GetString("considerations")),
			SicknessResponse:     mustString(f.GetString("sickness")),
			CheckupFrequency:     mustString(f.GetString("checkups")),
		}
		withCore(true, func(ctx context.Context, c *core.Core) error {
			if err := c.InsertMealPattern(ctx, householdID, in); err != nil {
				return err
			}
			fmt.Printf("%s Recorded meal pattern for household %d%s\n", renderPass("✓"), householdID, syncNote(c))
			return nil
		})
	},
}

var memberCmd = &cobra.Command{
	Use:     "member",
	GroupID: "records",
	Short:   "Record and edit family members",
}

var memberAddCmd = &cobra.Command{
	Use:   "add <household-id> <first-name> <last-name>",
	Short: "Record a family member",
	Long: `Record a family member. Age and classification are derived from
--born. Use --relationship Other together with --other to store a
free-text relationship.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		born, err := parseDateFlag(mustString(f.GetString("born")), time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		in := core.MemberInput{
			HouseholdID:       parseID(args[0]),
			FirstName:         args[1],
			LastName:          args[2],
			Relationship:      mustString(f.GetString("relationship")),
			OtherRelationship: mustString(f.GetString("other")),
			Sex:               mustString(f.GetString("sex")),
			DateOfBirth:       born,
			HealthRisks:       mustStrings(f.GetStringSlice("risk")),
			Weight:            mustString(f.GetString("weight")),
			Height:            mustString(f.GetString("height")),
			EducationLevel:    mustString(f.GetString("education")),
		}
		withCore(true, func(ctx context.Context, c *core.Core) error {
			id, err := c.InsertMember(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("%s Recorded %s %s (id %s)%s\n",
				renderPass("✓"), in.FirstName, in.LastName, renderAccent(strconv.FormatInt(id, 10)), syncNote(c))
			return nil
		})
	},
}

var memberUpdateCmd = &cobra.Command{
	Use:   "update <member-id>",
	Short: "Edit a family member",
	Long: `Edit a family member. Only the flags given are changed. The row is
marked unsynced; with --push it is sent to the remote right away.

A failed push still keeps the local edit.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])
		patch, err := memberPatchFromFlags(cmd, time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		push := mustBool(cmd.Flags().GetBool("push"))
		withCore(false, func(ctx context.Context, c *core.Core) error {
			res, err := c.UpdateMemberData(ctx, id, patch, push)
			if err != nil {
				return err
			}
			switch {
			case res.Pushed:
				fmt.Printf("%s Member %d updated and synced\n", renderPass("✓"), id)
			case res.RemoteErr != "":
				fmt.Printf("%s Member %d updated locally; remote update failed: %s\n",
					renderWarn("!"), id, res.RemoteErr)
			default:
				fmt.Printf("%s Member %d updated%s\n", renderPass("✓"), id, syncNote(c))
			}
			return nil
		})
	},
}

// memberPatchFromFlags builds a patch from the flags the user actually set.
func memberPatchFromFlags(cmd *cobra.Command, now time.Time) (core.MemberPatch, error) {
	f := cmd.Flags()
	var p core.MemberPatch
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		s := mustString(f.GetString(name))
		return &s
	}
	p.FirstName = str("first")
	p.LastName = str("last")
	p.Relationship = str("relationship")
	p.OtherRelationship = str("other")
	p.Sex = str("sex")
	p.Weight = str("weight")
	p.Height = str("height")
	p.EducationLevel = str("education")
	if born := str("born"); born != nil {
		d, err := parseDateFlag(*born, now)
		if err != nil {
			return p, err
		}
		p.DateOfBirth = &d
	}
	if f.Changed("risk") {
		risks := mustStrings(f.GetStringSlice("risk"))
		p.HealthRisks = &risks
	}
	return p, nil
}

var healthCmd = &cobra.Command{
	Use:     "health",
	GroupID: "records",
	Short:   "Record member health information",
}

var healthAddCmd = &cobra.Command{
	Use:   "add <household-id> <member-id>",
	Short: "Record the health profile of a member",
	Long: `Record the health profile of a member. Detail flags (--smoker-details,
--alcohol-details, --activity-details, --condition) are only kept when the
matching yes/no flag is set. --lmp requires --family-planning.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		lmp, err := parseDateFlag(mustString(f.GetString("lmp")), time.Now())
		if err != nil {
			fatalf("%v", err)
		}
		in := core.HealthInfoInput{
			HouseholdID:         parseID(args[0]),
			MemberID:            parseID(args[1]),
			PhilHealth:          mustBool(f.GetBool("philhealth")),
			FamilyPlanning:      mustBool(f.GetBool("family-planning")),
			LastMenstrualPeriod: lmp,
			Smoker:              mustBool(f.GetBool("smoker")),
			SmokerDetails:       mustString(f.GetString("smoker-details")),
			DrinksAlcohol:       mustBool(f.GetBool("alcohol")),
			AlcoholDetails:      mustString(f.GetString("alcohol-details")),
			PhysicallyActive:    mustBool(f.GetBool("active")),
			ActivityDetails:     mustString(f.GetString("activity-details")),
			HasMorbidity:        mustBool(f.GetBool("morbidity")),
			MorbidityCondition:  mustString(f.GetString("condition")),
		}
		withCore(true, func(ctx context.Context, c *core.Core) error {
			id, err := c.InsertMemberHealthInfo(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("%s Recorded health info %d for member %d%s\n", renderPass("✓"), id, in.MemberID, syncNote(c))
			return nil
		})
	},
}

var immunizationCmd = &cobra.Command{
	Use:     "immunization",
	Aliases: []string{"imm"},
	GroupID: "records",
	Short:   "Record member immunizations",
}

var immunizationAddCmd = &cobra.Command{
	Use:   "add <household-id> <member-id>",
	Short: "Record the vaccines a member received",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		f := cmd.Flags()
		in := core.ImmunizationInput{
			HouseholdID:    parseID(args[0]),
			MemberID:       parseID(args[1]),
			BCG:            mustBool(f.GetBool("bcg")),
			HepatitisB:     mustBool(f.GetBool("hepb")),
			Pentavalent:    mustBool(f.GetBool("penta")),
			OralPolio:      mustBool(f.GetBool("opv")),
			MeaslesRubella: mustBool(f.GetBool("mr")),
			Pneumococcal:   mustBool(f.GetBool("pcv")),
			Remarks:        mustString(f.GetString("remarks")),
		}
		withCore(true, func(ctx context.Context, c *core.Core) error {
			id, err := c.InsertImmunization(ctx, in)
			if err != nil {
				return err
			}
			fmt.Printf("%s Recorded immunization %d for member %d%s\n", renderPass("✓"), id, in.MemberID, syncNote(c))
			return nil
		})
	},
}

// syncNote tells the user whether the last write could reach the remote.
func syncNote(c *core.Core) string {
	if c.Online() {
		return ""
	}
	return renderMuted(" (saved offline)")
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", s)
		os.Exit(1)
	}
	return id
}

func mustString(s string, err error) string {
	if err != nil {
		panic(err)
	}
	return s
}

func mustBool(b bool, err error) bool {
	if err != nil {
		panic(err)
	}
	return b
}

func mustStrings(s []string, err error) []string {
	if err != nil {
		panic(err)
	}
	return s
}

func addMemberFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("relationship", "", "relationship to the household head")
	f.String("other", "", "free-text relationship when --relationship is Other")
	f.String("sex", "", "Male or Female")
	f.String("born", "", "date of birth")
	f.StringSlice("risk", nil, "health risk (repeatable)")
	f.String("weight", "", "weight in kg")
	f.String("height", "", "height in cm")
	f.String("education", "", "highest education level")
}

func init() {
	hf := householdAddCmd.Flags()
	hf.String("district", "", "district")
	hf.String("barangay", "", "barangay")
	hf.String("sitio", "", "sitio or purok")
	hf.String("visited", "today", "date of visit")
	hf.String("toilet", "", "toilet type")
	hf.String("water", "", "water source")
	hf.String("income", "", "main income source")
	hf.Bool("garden", false, "household keeps a vegetable garden")
	hf.Bool("livestock", false, "household raises livestock")
	hf.Bool("4ps", false, "household is a 4Ps beneficiary")
	householdCmd.AddCommand(householdAddCmd)

	mf := mealAddCmd.Flags()
	mf.String("breakfast", "", "usual breakfast")
	mf.String("lunch", "", "usual lunch")
	mf.String("dinner", "", "usual dinner")
	mf.String("beliefs", "", "food beliefs")
	mf.String("considerations", "", "health considerations")
	mf.String("sickness", "", "what the household does when sick")
	mf.String("checkups", "", "checkup frequency")
	mealCmd.AddCommand(mealAddCmd)

	addMemberFlags(memberAddCmd)
	addMemberFlags(memberUpdateCmd)
	memberUpdateCmd.Flags().String("first", "", "first name")
	memberUpdateCmd.Flags().String("last", "", "last name")
	memberUpdateCmd.Flags().Bool("push", false, "send the change to the remote now")
	memberCmd.AddCommand(memberAddCmd, memberUpdateCmd)

	hif := healthAddCmd.Flags()
	hif.Bool("philhealth", false, "member has PhilHealth")
	hif.Bool("family-planning", false, "member practices family planning")
	hif.String("lmp", "", "last menstrual period")
	hif.Bool("smoker", false, "member smokes")
	hif.String("smoker-details", "", "smoking details")
	hif.Bool("alcohol", false, "member drinks alcohol")
	hif.String("alcohol-details", "", "drinking details")
	hif.Bool("active", false, "member is physically active")
	hif.String("activity-details", "", "activity details")
	hif.Bool("morbidity", false, "member has a morbidity")
	hif.String("condition", "", "morbidity condition")
	healthCmd.AddCommand(healthAddCmd)

	imf := immunizationAddCmd.Flags()
	imf.Bool("bcg", false, "BCG")
	imf.Bool("hepb", false, "Hepatitis B")
	imf.Bool("penta", false, "Pentavalent")
	imf.Bool("opv", false, "oral polio")
	imf.Bool("mr", false, "measles-rubella")
	imf.Bool("pcv", false, "pneumococcal")
	imf.String("remarks", "", "remarks")
	immunizationCmd.AddCommand(immunizationAddCmd)

	rootCmd.AddCommand(householdCmd, mealCmd, memberCmd, healthCmd, immunizationCmd)
}
