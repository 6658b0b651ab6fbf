package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

// Store is the root database handle. Tenant data is only reachable through ForTenant.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table
func (s *Store) Migrate() error {
	err := s.db.AutoMigrate(
		&models.Tenant{},
		&models.Location{},
		&models.SessionType{},
		&models.SessionInstance{},
		&models.Booking{},
		&models.BookingEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ForTenant returns a handle that applies tenant_id to every query.
// The tenant is not checked; HTTP callers go through Directory.Scope.
func (s *Store) ForTenant(tenantID uuid.UUID) *Scoped {
	return &Scoped{db: s.db, tenantID: tenantID}
}

// Scoped is a tenant-bound view of the store
type Scoped struct {
	db       *gorm.DB
	tenantID uuid.UUID
}

func (s *Scoped) TenantID() uuid.UUID {
	return s.tenantID
}

func (s *Scoped) scope(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Where("tenant_id = ?", s.tenantID)
}

// Tx runs fn in a transaction. fn must only use the handle it is given.
func (s *Scoped) Tx(ctx context.Context, fn func(tx *Scoped) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Scoped{db: tx, tenantID: s.tenantID})
	})
}

// notFound converts gorm.ErrRecordNotFound into a NotFound error and anything else into Internal
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.New(apperr.KindNotFound, "%s not found", what)
	}
	return apperr.Internal(err, "failed to load %s %v", what, id)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
