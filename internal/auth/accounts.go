package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/obs"
)

// Accounts provisions accounts and maintains their permission snapshots.
type Accounts struct {
	store  Store
	hasher PasswordHasher
	log    logrus.FieldLogger
}

// NewAccounts constructs the provisioning service.
func NewAccounts(store Store, hasher PasswordHasher) (*Accounts, error) {
	if store == nil || hasher == nil {
		return nil, errors.New("auth: store and hasher are required")
	}
	return &Accounts{store: store, hasher: hasher, log: obs.Logger()}, nil
}

// CreateAccount validates input, hashes the password and snapshots the role's
// permission row onto the new account.
func (a *Accounts) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, BadRequest("valid email is required")
	}
	if in.Password == "" {
		return nil, BadRequest("password is required")
	}
	if !ValidRole(string(in.Role)) {
		return nil, BadRequest(fmt.Sprintf("unsupported role %q", in.Role))
	}
	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, Internal("hash password", err)
	}
	acc := &Account{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Mobile:       strings.TrimSpace(in.Mobile),
		PasswordHash: hash,
		Role:         in.Role,
		Permissions:  RolePermissions(in.Role),
		LocationIDs:  dedupeStrings(in.LocationIDs),
		IsActive:     true,
	}
	if err := a.store.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, Conflict("email already registered")
		}
		return nil, Internal("create account", err)
	}
	return acc, nil
}

// SetPermissions overrides the account's permission snapshot. Unknown actions
// and effects are rejected.
func (a *Accounts) SetPermissions(ctx context.Context, accountID string, rules []PermissionRule) ([]PermissionRule, error) {
	known := make(map[string]struct{}, len(ActionCatalog))
	for _, action := range ActionCatalog {
		known[action] = struct{}{}
	}
	clean := make([]PermissionRule, 0, len(rules))
	for _, r := range rules {
		if _, ok := known[r.Action]; !ok {
			return nil, BadRequest(fmt.Sprintf("unknown action %q", r.Action))
		}
		if r.Effect != Allow && r.Effect != Deny {
			return nil, BadRequest(fmt.Sprintf("unknown effect %q", r.Effect))
		}
		clean = append(clean, r)
	}
	if err := a.update(ctx, accountID, AccountUpdate{Permissions: &clean}); err != nil {
		return nil, err
	}
	return clean, nil
}

// ReapplyRolePermissions discards any override and re-derives the snapshot from the role.
func (a *Accounts) ReapplyRolePermissions(ctx context.Context, accountID string) ([]PermissionRule, error) {
	acc, err := a.find(ctx, accountID)
	if err != nil {
		return nil, err
	}
	rules := RolePermissions(acc.Role)
	if err := a.update(ctx, acc.ID, AccountUpdate{Permissions: &rules}); err != nil {
		return nil, err
	}
	return rules, nil
}

// SetActive enables or disables an account. Disabling also drops the stored
// refresh token so no new access token can be minted.
func (a *Accounts) SetActive(ctx context.Context, accountID string, active bool) error {
	upd := AccountUpdate{IsActive: ptr(active)}
	if !active {
		upd.RefreshToken = ptr("")
		upd.IsLoggedIn = ptr(false)
	}
	return a.update(ctx, accountID, upd)
}

// EnsureSuperadmin creates the configured superadmin when none exists.
// Callers log the error and keep serving.
func (a *Accounts) EnsureSuperadmin(ctx context.Context, in NewAccount) (created bool, err error) {
	n, err := a.store.CountByRole(ctx, RoleSuperAdmin)
	if err != nil {
		return false, Internal("count superadmins", err)
	}
	if n > 0 {
		return false, nil
	}
	in.Role = RoleSuperAdmin
	acc, err := a.CreateAccount(ctx, in)
	if err != nil {
		return false, err
	}
	a.log.WithField("account_id", acc.ID).Info("superadmin bootstrapped")
	return true, nil
}

func (a *Accounts) find(ctx context.Context, accountID string) (*Account, error) {
	acc, err := a.store.FindByID(ctx, strings.TrimSpace(accountID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFound("account not found")
		}
		return nil, Internal("lookup account", err)
	}
	if acc.IsDeleted {
		return nil, NotFound("account not found")
	}
	return acc, nil
}

func (a *Accounts) update(ctx context.Context, accountID string, upd AccountUpdate) error {
	acc, err := a.find(ctx, accountID)
	if err != nil {
		return err
	}
	if err := a.store.Update(ctx, acc.ID, upd); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFound("account not found")
		}
		return Internal("update account", err)
	}
	return nil
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
