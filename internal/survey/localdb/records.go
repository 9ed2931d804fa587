package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hhsurvey/hhsync/internal/survey/schema"
)

// ErrNotFound is returned by the Get* helpers when no row has the given id.
var ErrNotFound = errors.New("record not found")

// insertRecord writes r as a new row with synced = 0 and revision = 1 and
// returns the assigned id. r's own id is ignored.
func (db *DB) insertRecord(ctx context.Context, r schema.Record) (int64, error) {
	table := r.TableName()
	cols := r.Columns()[1:]
	vals := r.Values()[1:]

	query := fmt.Sprintf("INSERT INTO %s (%s, synced, revision) VALUES (%s, 0, 1)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	res, err := db.conn.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new %s id: %w", table, err)
	}
	return id, nil
}

// updateRecord overwrites every pushed column of an existing row, resets
// synced to 0 and bumps the revision. It returns the new revision.
func (db *DB) updateRecord(ctx context.Context, r schema.Record) (int64, error) {
	table := r.TableName()
	cols := r.Columns()[1:]
	vals := r.Values()[1:]

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s, synced = 0, revision = revision + 1 WHERE id = ? RETURNING revision",
		table, strings.Join(sets, ", "))

	var revision int64
	err := db.conn.QueryRowContext(ctx, query, append(vals, r.RecordID())...).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s#%d: %w", table, r.RecordID(), ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to update %s#%d: %w", table, r.RecordID(), err)
	}
	return revision, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func listQuery(r schema.Record, unsyncedOnly bool) string {
	query := "SELECT " + strings.Join(r.Columns(), ", ") + ", synced, revision FROM " + r.TableName()
	if unsyncedOnly {
		query += " WHERE synced = 0"
	}
	return query + " ORDER BY id ASC"
}

func getQuery(r schema.Record) string {
	return "SELECT " + strings.Join(r.Columns(), ", ") + ", synced, revision FROM " + r.TableName() + " WHERE id = ?"
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ===== Households =====

// InsertHousehold writes h and sets its ID and Revision.
func (db *DB) InsertHousehold(ctx context.Context, h *schema.Household) error {
	id, err := db.insertRecord(ctx, h)
	if err != nil {
		return err
	}
	h.ID, h.Revision, h.Synced = id, 1, false
	return nil
}

// FindHouseholdByNumber returns the id of the household with the given
// number. ok is false if there is none.
func (db *DB) FindHouseholdByNumber(ctx context.Context, number string) (id int64, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx,
		"SELECT id FROM households WHERE household_number = ?", number).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up household %q: %w", number, err)
	}
	return id, true, nil
}

// GetHousehold retrieves one household by id.
func (db *DB) GetHousehold(ctx context.Context, id int64) (*schema.Household, error) {
	h, err := scanHousehold(db.conn.QueryRowContext(ctx, getQuery(&schema.Household{}), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("households#%d: %w", id, ErrNotFound)
	}
	return h, err
}

// ListHouseholds returns households in id order, optionally only unsynced ones.
func (db *DB) ListHouseholds(ctx context.Context, unsyncedOnly bool) ([]*schema.Household, error) {
	rows, err := db.conn.QueryContext(ctx, listQuery(&schema.Household{}, unsyncedOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query households: %w", err)
	}
	defer rows.Close()

	var out []*schema.Household
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating households: %w", err)
	}
	return out, nil
}

func scanHousehold(s scanner) (*schema.Household, error) {
	var h schema.Household
	err := s.Scan(
		&h.ID, &h.District, &h.Barangay, &h.Sitio, &h.HouseholdNumber, &h.DateOfVisit,
		&h.ToiletType, &h.WaterSource, &h.IncomeSource,
		&h.HasVegetableGarden, &h.RaisesLivestock, &h.Is4PsMember,
		&h.Synced, &h.Revision,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan household: %w", err)
	}
	return &h, nil
}

// ===== Meal patterns =====

// InsertMealPattern writes m and sets its ID and Revision.
func (db *DB) InsertMealPattern(ctx context.Context, m *schema.MealPattern) error {
	id, err := db.insertRecord(ctx, m)
	if err != nil {
		return err
	}
	m.ID, m.Revision, m.Synced = id, 1, false
	return nil
}

// ListMealPatterns returns meal patterns in id order.
func (db *DB) ListMealPatterns(ctx context.Context, unsyncedOnly bool) ([]*schema.MealPattern, error) {
	rows, err := db.conn.QueryContext(ctx, listQuery(&schema.MealPattern{}, unsyncedOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query meal patterns: %w", err)
	}
	defer rows.Close()

	var out []*schema.MealPattern
	for rows.Next() {
		var m schema.MealPattern
		err := rows.Scan(
			&m.ID, &m.HouseholdID, &m.Breakfast, &m.Lunch, &m.Dinner,
			&m.FoodBeliefs, &m.HealthConsiderations, &m.SicknessResponse, &m.CheckupFrequency,
			&m.Synced, &m.Revision,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal pattern: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating meal patterns: %w", err)
	}
	return out, nil
}

// ===== Members =====

// InsertMember writes m and sets its ID and Revision.
func (db *DB) InsertMember(ctx context.Context, m *schema.Member) error {
	id, err := db.insertRecord(ctx, m)
	if err != nil {
		return err
	}
	m.ID, m.Revision, m.Synced = id, 1, false
	return nil
}

// UpdateMember overwrites the member row with m's fields, marking it unsynced.
func (db *DB) UpdateMember(ctx context.Context, m *schema.Member) error {
	rev, err := db.updateRecord(ctx, m)
	if err != nil {
		return err
	}
	m.Revision, m.Synced = rev, false
	return nil
}

// GetMember retrieves one member by id.
func (db *DB) GetMember(ctx context.Context, id int64) (*schema.Member, error) {
	m, err := scanMember(db.conn.QueryRowContext(ctx, getQuery(&schema.Member{}), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("members#%d: %w", id, ErrNotFound)
	}
	return m, err
}

// ListMembers returns members in id order.
func (db *DB) ListMembers(ctx context.Context, unsyncedOnly bool) ([]*schema.Member, error) {
	rows, err := db.conn.QueryContext(ctx, listQuery(&schema.Member{}, unsyncedOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var out []*schema.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return out, nil
}

func scanMember(s scanner) (*schema.Member, error) {
	var m schema.Member
	var weight, height sql.NullFloat64
	err := s.Scan(
		&m.ID, &m.HouseholdID, &m.FirstName, &m.LastName, &m.Relationship, &m.Sex,
		&m.DateOfBirth, &m.Age, &m.Classification, &m.HealthRisks,
		&weight, &height, &m.EducationLevel,
		&m.Synced, &m.Revision,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	m.WeightKg = nullFloat(weight)
	m.HeightCm = nullFloat(height)
	return &m, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

// ===== Member health info =====

// InsertHealthInfo writes h and sets its ID and Revision.
func (db *DB) InsertHealthInfo(ctx context.Context, h *schema.HealthInfo) error {
	id, err := db.insertRecord(ctx, h)
	if err != nil {
		return err
	}
	h.ID, h.Revision, h.Synced = id, 1, false
	return nil
}

// ListHealthInfo returns member health info rows in id order.
func (db *DB) ListHealthInfo(ctx context.Context, unsyncedOnly bool) ([]*schema.HealthInfo, error) {
	rows, err := db.conn.QueryContext(ctx, listQuery(&schema.HealthInfo{}, unsyncedOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query health info: %w", err)
	}
	defer rows.Close()

	var out []*schema.HealthInfo
	for rows.Next() {
		var h schema.HealthInfo
		err := rows.Scan(
			&h.ID, &h.MemberID, &h.HouseholdID, &h.PhilHealth, &h.FamilyPlanning,
			&h.LastMenstrualPeriod, &h.Smoker, &h.SmokerDetails, &h.DrinksAlcohol,
			&h.AlcoholDetails, &h.PhysicallyActive, &h.ActivityDetails,
			&h.HasMorbidity, &h.MorbidityCondition,
			&h.Synced, &h.Revision,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health info: %w", err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health info: %w", err)
	}
	return out, nil
}

// ===== Immunizations =====

// InsertImmunization writes i and sets its ID and Revision.
func (db *DB) InsertImmunization(ctx context.Context, i *schema.Immunization) error {
	id, err := db.insertRecord(ctx, i)
	if err != nil {
		return err
	}
	i.ID, i.Revision, i.Synced = id, 1, false
	return nil
}

// ListImmunizations returns immunization rows in id order.
func (db *DB) ListImmunizations(ctx context.Context, unsyncedOnly bool) ([]*schema.Immunization, error) {
	rows, err := db.conn.QueryContext(ctx, listQuery(&schema.Immunization{}, unsyncedOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to query immunizations: %w", err)
	}
	defer rows.Close()

	var out []*schema.Immunization
	for rows.Next() {
		var i schema.Immunization
		err := rows.Scan(
			&i.ID, &i.MemberID, &i.HouseholdID, &i.BCG, &i.HepatitisB, &i.Pentavalent,
			&i.OralPolio, &i.MeaslesRubella, &i.Pneumococcal, &i.Remarks,
			&i.Synced, &i.Revision,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan immunization: %w", err)
		}
		out = append(out, &i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating immunizations: %w", err)
	}
	return out, nil
}
