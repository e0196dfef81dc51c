package week

import (
	"context"
	"fmt"
	"time"
)

// Service answers "which week record?" for the rest of the planner.
// Every lookup goes through Of, so ids are derived in exactly one place.
type Service struct {
	store      Store
	reconciler *Reconciler
	loc        *time.Location
}

// NewService creates a Service. Shared tokens are read in loc
// (time.Local when nil).
func NewService(store Store, reconciler *Reconciler, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, reconciler: reconciler, loc: loc}
}

// Reconciler returns the reconciler used for record creation.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// Location returns the location used for dates without a zone.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ForDate returns the record for the week containing date, creating it on
// first reference.
func (s *Service) ForDate(ctx context.Context, date time.Time) (Record, error) {
	rec, _, err := s.reconciler.EnsureWeekExists(ctx, date)
	return rec, err
}

// CurrentWeek returns the record for the current week.
func (s *Service) CurrentWeek(ctx context.Context) (Record, error) {
	return s.ForDate(ctx, Now().In(s.loc))
}

// ByID returns the stored record with id.
func (s *Service) ByID(ctx context.Context, id string) (Record, error) {
	return s.store.GetWeekRangeByID(ctx, id)
}

// All returns every stored record.
func (s *Service) All(ctx context.Context) ([]Record, error) {
	return s.store.GetWeekRanges(ctx)
}

// SharedResult is the outcome of resolving a shared-plan token.
type SharedResult struct {
	Record Record
	// Fallback is true when the token could not be parsed and the current
	// week was used instead.
	Fallback bool
	// Created is true when no record existed and one was created.
	Created bool
}

// ResolveShared finds the record for a shared-plan token. Unparseable tokens
// fall back to the current week; an empty store falls back to creating the
// week containing the token's start date.
func (s *Service) ResolveShared(ctx context.Context, token string) (SharedResult, error) {
	target, ok := ParseSharedRangeIn(token, s.loc)
	if !ok {
		rec, err := s.CurrentWeek(ctx)
		if err != nil {
			return SharedResult{}, err
		}
		return SharedResult{Record: rec, Fallback: true}, nil
	}

	records, err := s.store.GetWeekRanges(ctx)
	if err != nil {
		return SharedResult{}, fmt.Errorf("list week ranges: %w", err)
	}
	if rec, ok := Resolve(records, target); ok {
		return SharedResult{Record: rec}, nil
	}

	rec, created, err := s.reconciler.EnsureWeekExists(ctx, target.Start)
	if err != nil {
		return SharedResult{}, err
	}
	return SharedResult{Record: rec, Created: created}, nil
}

// ShareToken returns the shared-plan token for a record.
func ShareToken(r Record) string {
	return FormatSharedRange(r.Range())
}
