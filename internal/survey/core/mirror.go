package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/hhsurvey/hhsync/internal/survey/localdb"
	"github.com/hhsurvey/hhsync/internal/survey/schema"
)

// Mirror is an in-memory copy of the five collections for list screens.
// It is rebuilt from the local store after writes and passes, and emptied
// by a reset.
type Mirror struct {
	mu            sync.RWMutex
	households    []*schema.Household
	members       []*schema.Member
	mealPatterns  []*schema.MealPattern
	healthInfo    []*schema.HealthInfo
	immunizations []*schema.Immunization
}

// Refresh reloads every collection from db.
func (m *Mirror) Refresh(ctx context.Context, db *localdb.DB) error {
	households, err := db.ListHouseholds(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load households: %w", err)
	}
	members, err := db.ListMembers(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}
	meals, err := db.ListMealPatterns(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load meal patterns: %w", err)
	}
	health, err := db.ListHealthInfo(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load health info: %w", err)
	}
	imms, err := db.ListImmunizations(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to load immunizations: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.households, m.members, m.mealPatterns, m.healthInfo, m.immunizations =
		households, members, meals, health, imms
	return nil
}

// Clear drops every cached row.
func (m *Mirror) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.households, m.members, m.mealPatterns, m.healthInfo, m.immunizations = nil, nil, nil, nil, nil
}

func (m *Mirror) Households() []*schema.Household {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.Household(nil), m.households...)
}

func (m *Mirror) Members() []*schema.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.Member(nil), m.members...)
}

func (m *Mirror) MealPatterns() []*schema.MealPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.MealPattern(nil), m.mealPatterns...)
}

func (m *Mirror) HealthInfo() []*schema.HealthInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.HealthInfo(nil), m.healthInfo...)
}

func (m *Mirror) Immunizations() []*schema.Immunization {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.Immunization(nil), m.immunizations...)
}

// MembersOf returns the cached members of one household.
func (m *Mirror) MembersOf(householdID int64) []*schema.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*schema.Member
	for _, mem := range m.members {
		if mem.HouseholdID == householdID {
			out = append(out, mem)
		}
	}
	return out
}
