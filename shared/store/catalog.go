package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/models"
)

// CreateLocation inserts a location for this tenant. Names are unique per tenant.
func (s *Scoped) CreateLocation(ctx context.Context, loc *models.Location) error {
	loc.TenantID = s.tenantID

	var count int64
	if err := s.scope(ctx).Model(&models.Location{}).Where("name = ?", loc.Name).Count(&count).Error; err != nil {
		return apperr.Internal(err, "failed to check location name")
	}
	if count > 0 {
		return apperr.New(apperr.KindDuplicateName, "Location with this name already exists")
	}

	if err := s.db.WithContext(ctx).Create(loc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.KindDuplicateName, "Location with this name already exists")
		}
		return apperr.Internal(err, "failed to create location")
	}
	return nil
}

// Location returns one location of this tenant
func (s *Scoped) Location(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var loc models.Location
	if err := s.scope(ctx).First(&loc, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Location", id)
	}
	return &loc, nil
}

// ListLocations returns the tenant's locations ordered by name
func (s *Scoped) ListLocations(ctx context.Context, offset, limit int) ([]models.Location, error) {
	locations := []models.Location{}
	err := s.scope(ctx).
		Order("name ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to list locations")
	}
	return locations, nil
}

// CreateSessionType inserts a session type for this tenant
func (s *Scoped) CreateSessionType(ctx context.Context, st *models.SessionType) error {
	st.TenantID = s.tenantID
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		return apperr.Internal(err, "failed to create session type")
	}
	return nil
}

// SessionType returns one session type of this tenant
func (s *Scoped) SessionType(ctx context.Context, id uuid.UUID) (*models.SessionType, error) {
	var st models.SessionType
	if err := s.scope(ctx).First(&st, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Session type", id)
	}
	return &st, nil
}

// ListSessionTypes returns the tenant's session types ordered by name
func (s *Scoped) ListSessionTypes(ctx context.Context, offset, limit int) ([]models.SessionType, error) {
	types := []models.SessionType{}
	err := s.scope(ctx).
		Order("name ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&types).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to list session types")
	}
	return types, nil
}
