// Package storetest opens migrated in-memory SQLite stores for tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pavitra93/go-gym-booking/shared/config"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

// Open returns a migrated store backed by a private in-memory database.
// A single connection keeps the database alive and serializes access,
// so code under test must not touch the pool while holding a transaction.
func Open(t testing.TB) *store.Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { sqlDB.Close() })

	s := store.New(db)
	require.NoError(t, s.Migrate())
	return s
}

// Tenant inserts an active tenant
func Tenant(t testing.TB, s *store.Store, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: name, IsActive: true}
	require.NoError(t, s.DB().Create(tenant).Error)
	return tenant
}

// Catalog inserts a location and a session type of the given capacity for the tenant
func Catalog(t testing.TB, s *store.Store, tenantID uuid.UUID, typeName string, capacity int) (*models.Location, *models.SessionType) {
	t.Helper()
	scoped := s.ForTenant(tenantID)

	loc := &models.Location{Name: "Studio " + uuid.NewString()[:8], IsActive: true}
	require.NoError(t, scoped.CreateLocation(context.Background(), loc))

	st := &models.SessionType{
		Name:        typeName,
		DurationMin: 60,
		MaxCapacity: capacity,
		Category:    models.CategoryClass,
		IsActive:    true,
	}
	require.NoError(t, scoped.CreateSessionType(context.Background(), st))
	return loc, st
}

// Instance inserts a session instance directly, bypassing scheduling rules so
// tests can create sessions in the past
func Instance(t testing.TB, s *store.Store, loc *models.Location, st *models.SessionType, start time.Time, capacity int) *models.SessionInstance {
	t.Helper()
	inst := &models.SessionInstance{
		SessionTypeID: st.ID,
		LocationID:    loc.ID,
		StartTime:     start.UTC(),
		EndTime:       start.UTC().Add(st.Duration()),
		Capacity:      capacity,
	}
	require.NoError(t, s.ForTenant(loc.TenantID).CreateInstance(context.Background(), inst))
	return inst
}
