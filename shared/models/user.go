package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleOwner   UserRole = "OWNER"
	RoleAdmin   UserRole = "ADMIN"
	RoleStaff   UserRole = "STAFF"
	RoleTrainer UserRole = "TRAINER"
	RoleMember  UserRole = "MEMBER"
)

// Valid reports whether r is one of the known roles
func (r UserRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleStaff, RoleTrainer, RoleMember:
		return true
	}
	return false
}

// Identity is the caller resolved from a verified bearer token. It is not stored.
type Identity struct {
	MemberID string    `json:"memberId"`
	Email    string    `json:"email"`
	Role     UserRole  `json:"role"`
	TenantID uuid.UUID `json:"tenantId"`
}

// IsOperator reports whether the identity may manage the tenant's catalog and bookings
func (i *Identity) IsOperator() bool {
	switch i.Role {
	case RoleOwner, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// CanAccessTenant checks the identity belongs to tenantID
func (i *Identity) CanAccessTenant(tenantID uuid.UUID) bool {
	return i.TenantID != uuid.Nil && i.TenantID == tenantID
}

// CanManageBooking checks whether the identity owns the booking or operates its tenant
func (i *Identity) CanManageBooking(b *Booking) bool {
	if !i.CanAccessTenant(b.TenantID) {
		return false
	}
	return b.MemberID == i.MemberID || i.IsOperator()
}

// TokenSession is the identity cached in Redis for a verified token
type TokenSession struct {
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (ts *TokenSession) IsExpired() bool {
	return time.Now().After(ts.ExpiresAt)
}
