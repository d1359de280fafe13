package auth

import "time"

// Principal is the bounded projection of an account attached to authenticated requests.
// It never carries the password hash or any stored token.
type Principal struct {
	ID          string           `json:"id"`
	Email       string           `json:"email"`
	Name        string           `json:"name"`
	Mobile      string           `json:"mobile,omitempty"`
	Role        Role             `json:"role"`
	Permissions []PermissionRule `json:"permissions"`
	Locations   []LocationScope  `json:"locations"`
	IsActive    bool             `json:"isActive"`
	LastLogin   time.Time        `json:"lastLogin"`
}

// NewPrincipal projects acc and its resolved locations into a Principal.
func NewPrincipal(acc *Account, locations []LocationScope) Principal {
	if locations == nil {
		locations = []LocationScope{}
	}
	return Principal{
		ID:          acc.ID,
		Email:       acc.Email,
		Name:        acc.Name,
		Mobile:      acc.Mobile,
		Role:        acc.Role,
		Permissions: append([]PermissionRule(nil), acc.Permissions...),
		Locations:   locations,
		IsActive:    acc.IsActive,
		LastLogin:   acc.LastLogin,
	}
}

// Allowed reports whether the principal holds an Allow rule for action.
// A Deny rule for the same action always wins; no rule means deny.
func (p Principal) Allowed(action string) bool {
	allowed := false
	for _, rule := range p.Permissions {
		if rule.Action != action {
			continue
		}
		if rule.Effect != Allow {
			return false
		}
		allowed = true
	}
	return allowed
}

// Check requires every action to resolve to Allow.
func Check(p Principal, actions ...string) error {
	if len(actions) == 0 {
		return Forbidden(MsgAccessDenied)
	}
	for _, action := range actions {
		if !p.Allowed(action) {
			return Forbidden(MsgAccessDenied)
		}
	}
	return nil
}
