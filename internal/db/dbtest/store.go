// Package dbtest provides an in-memory db.Store for handler tests. Items live
// in a timeline.MemoryRepository so the same engine code runs against it.
package dbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/Nixie-Tech-LLC/marquee/internal/db"
	"github.com/Nixie-Tech-LLC/marquee/internal/model"
	"github.com/Nixie-Tech-LLC/marquee/internal/timeline"
)

type Store struct {
	mu        sync.Mutex
	schedules map[int]model.Schedule
	nextID    int

	// Repo holds the timeline items of every schedule.
	Repo *timeline.MemoryRepository
	// Err, when set, is returned by every call.
	Err error
}

var _ db.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		schedules: make(map[int]model.Schedule),
		Repo:      timeline.NewMemoryRepository(),
	}
}

func (s *Store) CreateSchedule(ctx context.Context, in model.NewSchedule) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Schedule{}, s.Err
	}

	s.nextID++
	settings := in.Settings
	if len(settings) == 0 {
		settings = types.JSONText("{}")
	}
	now := time.Now().UTC()
	sc := model.Schedule{
		ID:          s.nextID,
		CompanyID:   in.CompanyID,
		Name:        in.Name,
		Description: in.Description,
		LookupCode:  fmt.Sprintf("TEST%04d", s.nextID),
		IsActive:    true,
		Timezone:    in.Timezone,
		Settings:    settings,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.schedules[sc.ID] = sc
	s.Repo.PutSchedule(sc.ID, true)
	return sc, nil
}

func (s *Store) GetSchedule(ctx context.Context, id int) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Schedule{}, s.Err
	}
	sc, ok := s.schedules[id]
	if !ok {
		return model.Schedule{}, timeline.NotFoundf("schedule %d", id)
	}
	return sc, nil
}

func (s *Store) GetScheduleByCode(ctx context.Context, code string) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Schedule{}, s.Err
	}
	for _, sc := range s.schedules {
		if sc.LookupCode == code && sc.IsActive {
			return sc, nil
		}
	}
	return model.Schedule{}, timeline.NotFoundf("schedule %q", code)
}

func (s *Store) ListSchedules(ctx context.Context, companyID int) ([]model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []model.Schedule{}
	for _, sc := range s.schedules {
		if sc.CompanyID == companyID {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, id int, in model.ScheduleUpdate) (model.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.Schedule{}, s.Err
	}
	sc, ok := s.schedules[id]
	if !ok || !sc.IsActive {
		return model.Schedule{}, timeline.NotFoundf("schedule %d", id)
	}
	if in.Name != nil {
		sc.Name = *in.Name
	}
	if in.Description != nil {
		sc.Description = in.Description
	}
	if in.Timezone != nil {
		sc.Timezone = *in.Timezone
	}
	if in.Settings != nil {
		sc.Settings = in.Settings
	}
	sc.UpdatedAt = time.Now().UTC()
	s.schedules[id] = sc
	return sc, nil
}

func (s *Store) DeactivateSchedule(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	sc, ok := s.schedules[id]
	if !ok || !sc.IsActive {
		return timeline.NotFoundf("schedule %d", id)
	}
	sc.IsActive = false
	s.schedules[id] = sc
	s.Repo.PutSchedule(id, false)
	return nil
}

func (s *Store) ListItems(ctx context.Context, scheduleID int) ([]timeline.Item, error) {
	s.mu.Lock()
	err := s.Err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Repo.ActiveItems(scheduleID), nil
}
