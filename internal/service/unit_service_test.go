package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-clearance-api/internal/models"
	"github.com/noah-isme/campus-clearance-api/pkg/config"
	appErrors "github.com/noah-isme/campus-clearance-api/pkg/errors"
)

type cacheStub struct {
	entries map[string][]byte
	hits    int
	misses  int
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string][]byte)}
}

func (c *cacheStub) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		c.misses++
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(data, dest)
}

func (c *cacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *cacheStub) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func TestUnitServiceRequirementsCached(t *testing.T) {
	w := newWorkflowStub()
	w.addUnit(models.UnitTypeOffice, "office-1", "Library")
	w.addRequirement(models.UnitTypeOffice, "office-1", "r-books", "Return borrowed books", true, true)
	cache := newCacheStub()
	svc := NewUnitService(w, cache, config.CacheConfig{Enabled: true, RequirementsTTL: time.Minute, SettingsTTL: time.Minute}, nil)

	first, err := svc.Requirements(context.Background(), models.UnitTypeOffice, "office-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, 1, cache.misses)

	// a mutation behind the cache is not visible until invalidation
	w.addRequirement(models.UnitTypeOffice, "office-1", "r-extra", "Pay replacement fee", true, false)
	second, err := svc.Requirements(context.Background(), models.UnitTypeOffice, "office-1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 1, cache.hits)

	require.NoError(t, svc.InvalidateCaches(context.Background()))
	third, err := svc.Requirements(context.Background(), models.UnitTypeOffice, "office-1")
	require.NoError(t, err)
	require.Len(t, third, 2)
}

func TestUnitServicePeriodSettings(t *testing.T) {
	w := newWorkflowStub()
	cache := newCacheStub()
	svc := NewUnitService(w, cache, config.CacheConfig{Enabled: true, SettingsTTL: time.Minute}, nil)

	settings, err := svc.PeriodSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-S1", settings.AcademicPeriod)
	require.True(t, settings.TypeEnabled(models.RequestTypeGraduation))

	// served from cache on the second read
	settings, err = svc.PeriodSettings(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-S1", settings.AcademicPeriod)
	require.Equal(t, 1, cache.hits)
}

func TestUnitServicePeriodSettingsMissing(t *testing.T) {
	w := newWorkflowStub()
	w.settings = nil
	svc := NewUnitService(w, nil, config.CacheConfig{}, nil)

	_, err := svc.PeriodSettings(context.Background())
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUnitServiceWorksWithoutCache(t *testing.T) {
	w := newWorkflowStub()
	w.addUnit(models.UnitTypeDepartment, "dept-1", "Computer Science")
	svc := NewUnitService(w, nil, config.CacheConfig{}, nil)

	units, err := svc.Units(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 1)

	reqs, err := svc.Requirements(context.Background(), models.UnitTypeDepartment, "dept-1")
	require.NoError(t, err)
	require.Empty(t, reqs)
}
