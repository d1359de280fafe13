package httpapi

import (
	"net/http"
	"strings"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/audit"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/auth"
	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/ids"
)

type createUserRequest struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Mobile      string   `json:"mobile"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	LocationIDs []string `json:"locationIds"`
}

type userResponse struct {
	ID          string                `json:"id"`
	Email       string                `json:"email"`
	Name        string                `json:"name"`
	Mobile      string                `json:"mobile,omitempty"`
	Role        auth.Role             `json:"role"`
	Permissions []auth.PermissionRule `json:"permissions"`
	LocationIDs []string              `json:"locationIds"`
	IsActive    bool                  `json:"isActive"`
}

type setPermissionsRequest struct {
	Permissions []auth.PermissionRule `json:"permissions"`
}

type setStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acc, err := a.accounts.CreateAccount(r.Context(), auth.NewAccount{
		Email:       req.Email,
		Name:        req.Name,
		Mobile:      req.Mobile,
		Password:    req.Password,
		Role:        auth.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		LocationIDs: req.LocationIDs,
	})
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventAccountCreated, map[string]any{
		"target_id": acc.ID,
		"role":      string(acc.Role),
	})

	locations := acc.LocationIDs
	if locations == nil {
		locations = []string{}
	}
	respond(w, http.StatusCreated, userResponse{
		ID:          acc.ID,
		Email:       acc.Email,
		Name:        acc.Name,
		Mobile:      acc.Mobile,
		Role:        acc.Role,
		Permissions: acc.Permissions,
		LocationIDs: locations,
		IsActive:    acc.IsActive,
	}, "user created")
}

func (a *API) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req setPermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rules, err := a.accounts.SetPermissions(r.Context(), id, req.Permissions)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPermissionsSet, map[string]any{
		"target_id": id,
		"rules":     len(rules),
	})
	respond(w, http.StatusOK, map[string]any{"permissions": rules}, "permissions updated")
}

func (a *API) handleReapplyPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	rules, err := a.accounts.ReapplyRolePermissions(r.Context(), id)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventPermissionsSet, map[string]any{
		"target_id": id,
		"reapplied": true,
	})
	respond(w, http.StatusOK, map[string]any{"permissions": rules}, "role permissions reapplied")
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive == nil {
		writeError(w, r, http.StatusBadRequest, "isActive is required")
		return
	}
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok && principal.ID == id && !*req.IsActive {
		writeError(w, r, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}
	if err := a.accounts.SetActive(r.Context(), id, *req.IsActive); err != nil {
		writeAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventAccountStatusSet, map[string]any{
		"target_id": id,
		"is_active": *req.IsActive,
	})
	respond(w, http.StatusOK, map[string]any{"id": id, "isActive": *req.IsActive}, "status updated")
}

// accountIDParam rejects {id} values that are not account identifiers before
// they reach the store.
func accountIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !ids.Valid(id) {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return "", false
	}
	return id, true
}
