package auth

import "time"

// Role is one of the closed set of account roles.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleAuditor    Role = "auditor"
	RoleSupervisor Role = "supervisor"
	RoleUser       Role = "user"
)

// Roles lists every recognized role in catalog order.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleAuditor, RoleSupervisor, RoleUser}

// ValidRole reports whether role is one of the recognized roles.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if string(r) == role {
			return true
		}
	}
	return false
}

// Effect is the outcome attached to a permission rule.
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// PermissionRule grants or denies a single action.
type PermissionRule struct {
	Action string `json:"action"`
	Effect Effect `json:"effect"`
}

// Account is the persisted principal.
type Account struct {
	ID           string
	Email        string
	Name         string
	Mobile       string
	PasswordHash string
	Role         Role
	Permissions  []PermissionRule
	LocationIDs  []string

	IsActive   bool
	IsLoggedIn bool
	IsRemember bool
	LastLogin  time.Time
	LastLogout time.Time

	RefreshToken        string
	ResetToken          string
	ResetTokenExpiresAt time.Time
	IsDeleted           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Clone returns a deep copy so store implementations never share slices with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.Permissions = append([]PermissionRule(nil), a.Permissions...)
	out.LocationIDs = append([]string(nil), a.LocationIDs...)
	return &out
}

// LocationScope is a location the principal may act on, with its region hierarchy flattened.
type LocationScope struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Area  string `json:"area,omitempty"`
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// NewAccount carries the fields accepted by account provisioning.
type NewAccount struct {
	Email       string
	Name        string
	Mobile      string
	Password    string
	Role        Role
	LocationIDs []string
}
