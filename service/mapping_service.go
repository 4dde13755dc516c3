package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"civicroute/metrics"
	"civicroute/models"
	"civicroute/repository"
)

// MappingStore is the lookup surface the resolver depends on. The plain MySQL
// repository and the Redis-backed decorator both satisfy it.
type MappingStore interface {
	FindByCategoryAndCity(ctx context.Context, category, city string) (*models.DepartmentMapping, error)
	FindByCategory(ctx context.Context, category string) (*models.DepartmentMapping, error)
}

// MappingQuery carries the complaint fields resolution inspects
type MappingQuery struct {
	ID       int64
	Category string
	City     string
	Pincode  string
}

// resolveConcurrency bounds the fan-out of ResolveMany
const resolveConcurrency = 8

// MappingService maps (category, city) to a department with tiered fallback:
// exact match, then category-only, then the configured default department.
// Resolve never returns an error; every failure path degrades to the default
// so a complaint always lands on an actionable department.
type MappingService struct {
	store  MappingStore
	policy *models.EnrichmentPolicy
	logger zerolog.Logger
}

// NewMappingService creates a new mapping resolver
func NewMappingService(store MappingStore, policy *models.EnrichmentPolicy, logger zerolog.Logger) *MappingService {
	if policy == nil {
		policy = models.DefaultEnrichmentPolicy()
	}
	return &MappingService{store: store, policy: policy, logger: logger}
}

// Resolve finds the department for one complaint. First match wins: exact
// (category, city), then category in any city, then the default. A store
// error counts as no match.
func (s *MappingService) Resolve(ctx context.Context, q MappingQuery) models.DepartmentMappingResult {
	category := strings.TrimSpace(q.Category)
	if category == "" {
		category = models.DefaultCategory
	}
	city := strings.TrimSpace(q.City)

	if city != "" {
		mapping, err := s.store.FindByCategoryAndCity(ctx, category, city)
		if err == nil {
			return resultFromMapping(mapping, models.MatchedCriteria{Category: category, City: city})
		}
		s.warnLookup(err, q, "exact")
	}

	mapping, err := s.store.FindByCategory(ctx, category)
	if err == nil {
		// The city that matched is the row's, not the complaint's.
		return resultFromMapping(mapping, models.MatchedCriteria{Category: category, City: mapping.City})
	}
	s.warnLookup(err, q, "category")

	metrics.DefaultMappings.Inc()
	return s.DefaultResult(category, city)
}

// ResolveMany resolves a batch concurrently. Failure of one item never aborts
// the rest; a panicking or erroring resolution degrades to the default result
// for that item only. The returned map has an entry for every input ID.
func (s *MappingService) ResolveMany(ctx context.Context, queries []MappingQuery) map[int64]models.DepartmentMappingResult {
	results := make(map[int64]models.DepartmentMappingResult, len(queries))
	if len(queries) == 0 {
		return results
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)

	for _, q := range queries {
		q := q
		g.Go(func() error {
			result := s.resolveSafe(ctx, q)
			mu.Lock()
			results[q.ID] = result
			mu.Unlock()
			return nil
		})
	}
	// The workers never return errors; Wait only joins them.
	_ = g.Wait()
	return results
}

// resolveSafe shields the batch path from panics inside a single resolution
func (s *MappingService) resolveSafe(ctx context.Context, q MappingQuery) (result models.DepartmentMappingResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Int64("complaint_id", q.ID).Msg("[resolver] recovered")
			result = s.DefaultResult(q.Category, q.City)
		}
	}()
	return s.Resolve(ctx, q)
}

// DefaultResult builds the fallback resolution for a complaint nothing
// matched. MatchedCriteria echoes the input since no row was involved.
func (s *MappingService) DefaultResult(category, city string) models.DepartmentMappingResult {
	department := s.policy.DefaultDepartment
	return models.DepartmentMappingResult{
		Department:      department,
		HigherAuthority: models.HigherAuthorityFor(department),
		Status:          "active",
		IsDefault:       true,
		MatchedCriteria: models.MatchedCriteria{Category: category, City: city},
	}
}

func (s *MappingService) warnLookup(err error, q MappingQuery, tier string) {
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return
	}
	s.logger.Warn().Err(err).
		Str("tier", tier).
		Str("category", q.Category).
		Str("city", q.City).
		Msg("[resolver] lookup failed, falling through")
}

func resultFromMapping(m *models.DepartmentMapping, matched models.MatchedCriteria) models.DepartmentMappingResult {
	higher := m.HigherAuthority
	if higher == "" {
		higher = models.HigherAuthorityFor(m.Department)
	}
	return models.DepartmentMappingResult{
		Department:      m.Department,
		HigherAuthority: higher,
		Status:          m.Status,
		IsDefault:       false,
		MatchedCriteria: matched,
	}
}
