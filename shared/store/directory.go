package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

const tenantCacheTTL = 5 * time.Minute

// Directory resolves tenant ids, reading through Redis when it is configured
type Directory struct {
	store *Store
}

func NewDirectory(s *Store) *Directory {
	return &Directory{store: s}
}

func tenantCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("tenant:%s", id)
}

// Resolve returns the active tenant with the given id. Absent and inactive tenants are NotFound.
func (d *Directory) Resolve(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	err := utils.CacheGetJSON(ctx, tenantCacheKey(id), &tenant)
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		logrus.WithError(err).WithField("tenant_id", id).Warn("Tenant cache read failed")
	}

	if err := d.store.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Tenant", id)
	}
	if !tenant.IsActive {
		return nil, apperr.New(apperr.KindNotFound, "Tenant not found")
	}

	if err := utils.CacheSetJSON(ctx, tenantCacheKey(id), &tenant, tenantCacheTTL); err != nil {
		logrus.WithError(err).WithField("tenant_id", id).Warn("Tenant cache write failed")
	}
	return &tenant, nil
}

// Scope resolves the tenant and returns its scoped store handle
func (d *Directory) Scope(ctx context.Context, id uuid.UUID) (*Scoped, error) {
	if _, err := d.Resolve(ctx, id); err != nil {
		return nil, err
	}
	return d.store.ForTenant(id), nil
}

// CreateTenant registers a new active tenant
func (d *Directory) CreateTenant(ctx context.Context, name string) (*models.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, apperr.New(apperr.KindValidation, "name must be 1-100 characters")
	}

	tenant := &models.Tenant{Name: name, IsActive: true}
	if err := d.store.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, apperr.Internal(err, "failed to create tenant")
	}
	return tenant, nil
}

// Deactivate marks a tenant inactive and drops it from the cache
func (d *Directory) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := d.store.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return apperr.Internal(res.Error, "failed to deactivate tenant %s", id)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.KindNotFound, "Tenant not found")
	}
	if err := utils.CacheDelete(ctx, tenantCacheKey(id)); err != nil {
		logrus.WithError(err).WithField("tenant_id", id).Warn("Tenant cache delete failed")
	}
	return nil
}

// ListTenants returns every tenant ordered by name
func (d *Directory) ListTenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := d.store.db.WithContext(ctx).Order("name ASC").Find(&tenants).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list tenants")
	}
	return tenants, nil
}
