package auth

import (
	"context"
	"testing"
)

func TestCreateAccountValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.CreateAccount(ctx, NewAccount{Email: "bad", Password: "x", Role: RoleUser})
	wantError(t, err, KindBadRequest, "")
	_, err = env.accounts.CreateAccount(ctx, NewAccount{Email: "a@example.com", Role: RoleUser})
	wantError(t, err, KindBadRequest, "")
	_, err = env.accounts.CreateAccount(ctx, NewAccount{Email: "a@example.com", Password: "x", Role: "janitor"})
	wantError(t, err, KindBadRequest, "")

	env.createAccount(t, "a@example.com", RoleUser)
	_, err = env.accounts.CreateAccount(ctx, NewAccount{Email: "A@example.com", Password: "x", Role: RoleUser})
	wantError(t, err, KindConflict, "")
}

func TestCreateAccountSnapshotsRoleAndLocations(t *testing.T) {
	env := newTestEnv(t)
	acc, err := env.accounts.CreateAccount(context.Background(), NewAccount{
		Email:       "sup@example.com",
		Password:    "s3cret",
		Role:        RoleSupervisor,
		LocationIDs: []string{"loc-1", " loc-1 ", "", "loc-2"},
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if !acc.IsActive {
		t.Fatalf("new accounts start active")
	}
	if acc.PasswordHash == "" || acc.PasswordHash == "s3cret" {
		t.Fatalf("password not hashed")
	}
	if len(acc.LocationIDs) != 2 || acc.LocationIDs[0] != "loc-1" || acc.LocationIDs[1] != "loc-2" {
		t.Fatalf("unexpected location ids: %v", acc.LocationIDs)
	}
	if len(acc.Permissions) != len(ActionCatalog) {
		t.Fatalf("expected full permission snapshot, got %d rules", len(acc.Permissions))
	}
}

func TestPermissionOverrideSurvivesUntilReapplied(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "user@example.com", RoleUser)
	ctx := context.Background()

	override := []PermissionRule{
		{Action: ActionDashboard, Effect: Allow},
		{Action: ActionReports, Effect: Allow},
	}
	if _, err := env.accounts.SetPermissions(ctx, acc.ID, override); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	res, err := env.sessions.Login(ctx, "user@example.com", "s3cret", false)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := Check(res.Principal, ActionReports); err != nil {
		t.Fatalf("override not honored: %v", err)
	}
	if err := Check(res.Principal, ActionAssetMaster); err == nil {
		t.Fatalf("actions absent from override must be denied")
	}

	rules, err := env.accounts.ReapplyRolePermissions(ctx, acc.ID)
	if err != nil {
		t.Fatalf("ReapplyRolePermissions: %v", err)
	}
	if len(rules) != len(ActionCatalog) {
		t.Fatalf("expected catalog row, got %d rules", len(rules))
	}
	stored, err := env.store.FindByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if (Principal{Permissions: stored.Permissions}).Allowed(ActionReports) {
		t.Fatalf("reapplied user row should deny reports")
	}
}

func TestSetPermissionsRejectsUnknownEntries(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "user@example.com", RoleUser)
	ctx := context.Background()

	_, err := env.accounts.SetPermissions(ctx, acc.ID, []PermissionRule{{Action: "launchMissiles", Effect: Allow}})
	wantError(t, err, KindBadRequest, "")
	_, err = env.accounts.SetPermissions(ctx, acc.ID, []PermissionRule{{Action: ActionDashboard, Effect: "Maybe"}})
	wantError(t, err, KindBadRequest, "")
	_, err = env.accounts.SetPermissions(ctx, "missing", nil)
	wantError(t, err, KindNotFound, "")
}

func TestSetActiveReactivates(t *testing.T) {
	env := newTestEnv(t)
	acc := env.createAccount(t, "user@example.com", RoleUser)
	ctx := context.Background()

	if err := env.accounts.SetActive(ctx, acc.ID, false); err != nil {
		t.Fatalf("SetActive(false): %v", err)
	}
	if err := env.accounts.SetActive(ctx, acc.ID, true); err != nil {
		t.Fatalf("SetActive(true): %v", err)
	}
	if _, err := env.sessions.Login(ctx, "user@example.com", "s3cret", false); err != nil {
		t.Fatalf("login after reactivation: %v", err)
	}
}

func TestEnsureSuperadminIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := NewAccount{Email: "root@example.com", Name: "Root", Password: "s3cret", Role: RoleUser}

	created, err := env.accounts.EnsureSuperadmin(ctx, in)
	if err != nil || !created {
		t.Fatalf("expected superadmin to be created, created=%v err=%v", created, err)
	}
	acc, err := env.store.FindByEmail(ctx, "root@example.com", false)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if acc.Role != RoleSuperAdmin {
		t.Fatalf("expected superadmin role, got %s", acc.Role)
	}

	created, err = env.accounts.EnsureSuperadmin(ctx, in)
	if err != nil || created {
		t.Fatalf("expected no-op on second run, created=%v err=%v", created, err)
	}
}
