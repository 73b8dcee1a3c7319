package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type unitStore interface {
	ListActive(ctx context.Context) ([]models.ApprovingUnit, error)
	ListRequirements(ctx context.Context, unitType models.UnitType, unitID string) ([]models.Requirement, error)
	GetPeriodSettings(ctx context.Context) (*models.PeriodSettings, error)
}

// CacheStore is the redis-backed read cache surface.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// UnitService serves the approving unit directory, per-unit requirement
// checklists, and the period settings. Checklists and settings change rarely
// and are read on every case view, so both sit behind a redis cache.
type UnitService struct {
	units   unitStore
	cache   CacheStore
	cfg     config.CacheConfig
	metrics *MetricsService
	logger  *zap.Logger
}

// NewUnitService constructs the service. A nil cache disables caching.
func NewUnitService(units unitStore, cache CacheStore, cfg config.CacheConfig, logger *zap.Logger) *UnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitService{units: units, cache: cache, cfg: cfg, logger: logger}
}

// SetMetrics attaches the metrics service.
func (s *UnitService) SetMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// Units lists every active approving unit.
func (s *UnitService) Units(ctx context.Context) ([]models.ApprovingUnit, error) {
	units, err := s.units.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approving units")
	}
	return units, nil
}

// Requirements returns a unit's active requirements, cached.
func (s *UnitService) Requirements(ctx context.Context, unitType models.UnitType, unitID string) ([]models.Requirement, error) {
	key := fmt.Sprintf("clearance:requirements:%s:%s", unitType, unitID)
	if s.cacheEnabled() {
		var cached []models.Requirement
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("requirements cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	requirements, err := s.units.ListRequirements(ctx, unitType, unitID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requirements")
	}
	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, requirements, s.cfg.RequirementsTTL); err != nil {
			s.logger.Warn("requirements cache write failed", zap.Error(err))
		}
	}
	return requirements, nil
}

// PeriodSettings returns the active period configuration, cached.
func (s *UnitService) PeriodSettings(ctx context.Context) (*models.PeriodSettings, error) {
	const key = "clearance:settings:period"
	if s.cacheEnabled() {
		var cached models.PeriodSettings
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("settings cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	settings, err := s.units.GetPeriodSettings(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period settings")
	}
	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, settings, s.cfg.SettingsTTL); err != nil {
			s.logger.Warn("settings cache write failed", zap.Error(err))
		}
	}
	return settings, nil
}

// InvalidateCaches drops the cached checklists and settings, for use after
// administrative edits.
func (s *UnitService) InvalidateCaches(ctx context.Context) error {
	if !s.cacheEnabled() {
		return nil
	}
	if err := s.cache.DeleteByPattern(ctx, "clearance:requirements:*"); err != nil {
		return fmt.Errorf("invalidate requirement caches: %w", err)
	}
	if err := s.cache.DeleteByPattern(ctx, "clearance:settings:*"); err != nil {
		return fmt.Errorf("invalidate settings caches: %w", err)
	}
	return nil
}

func (s *UnitService) cacheEnabled() bool {
	return s.cache != nil && s.cfg.Enabled
}
