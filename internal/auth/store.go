package auth

import (
	"context"
	"time"
)

// Store describes the Credential Store operations required by the auth subsystem.
// Each call is a single-document operation; callers rely on the store's own atomicity.
type Store interface {
	// FindByEmail looks an account up by its unique email. Soft-deleted
	// accounts are only returned when includeDeleted is set.
	FindByEmail(ctx context.Context, email string, includeDeleted bool) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByRefreshToken(ctx context.Context, token string) (*Account, error)
	// FindByResetToken returns the non-deleted account holding token whose
	// reset expiry is after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error)
	Create(ctx context.Context, acc *Account) error
	Update(ctx context.Context, id string, upd AccountUpdate) error
	CountByRole(ctx context.Context, role Role) (int, error)
	// ResolveLocations projects location ids onto their flattened region hierarchy.
	ResolveLocations(ctx context.Context, ids []string) ([]LocationScope, error)
	Ping(ctx context.Context) error
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	PasswordHash        *string
	Permissions         *[]PermissionRule
	IsActive            *bool
	IsLoggedIn          *bool
	IsRemember          *bool
	LastLogin           *time.Time
	LastLogout          *time.Time
	RefreshToken        *string
	ResetToken          *string
	ResetTokenExpiresAt *time.Time
	IsDeleted           *bool
}

func (u AccountUpdate) apply(acc *Account) {
	if u.PasswordHash != nil {
		acc.PasswordHash = *u.PasswordHash
	}
	if u.Permissions != nil {
		acc.Permissions = append([]PermissionRule(nil), (*u.Permissions)...)
	}
	if u.IsActive != nil {
		acc.IsActive = *u.IsActive
	}
	if u.IsLoggedIn != nil {
		acc.IsLoggedIn = *u.IsLoggedIn
	}
	if u.IsRemember != nil {
		acc.IsRemember = *u.IsRemember
	}
	if u.LastLogin != nil {
		acc.LastLogin = *u.LastLogin
	}
	if u.LastLogout != nil {
		acc.LastLogout = *u.LastLogout
	}
	if u.RefreshToken != nil {
		acc.RefreshToken = *u.RefreshToken
	}
	if u.ResetToken != nil {
		acc.ResetToken = *u.ResetToken
	}
	if u.ResetTokenExpiresAt != nil {
		acc.ResetTokenExpiresAt = *u.ResetTokenExpiresAt
	}
	if u.IsDeleted != nil {
		acc.IsDeleted = *u.IsDeleted
	}
}

func ptr[T any](v T) *T { return &v }
