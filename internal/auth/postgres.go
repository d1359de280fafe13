package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/ids"
)

var _ Store = (*PGStore)(nil)

const uniqueViolation = "23505"

const accountColumns = `id, email, name, mobile, password_hash, role, permissions, location_ids,
	is_active, is_logged_in, is_remember, last_login, last_logout,
	refresh_token, reset_token, reset_token_expires_at, is_deleted, created_at, updated_at`

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// OpenPostgres opens a pooled connection through the pgx stdlib driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindByEmail(ctx context.Context, email string, includeDeleted bool) (*Account, error) {
	query := `select ` + accountColumns + ` from accounts where email=$1`
	if !includeDeleted {
		query += ` and not is_deleted`
	}
	return s.queryOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (s *PGStore) FindByID(ctx context.Context, id string) (*Account, error) {
	return s.queryOne(ctx, `select `+accountColumns+` from accounts where id=$1`, id)
}

func (s *PGStore) FindByRefreshToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx, `select `+accountColumns+` from accounts where refresh_token=$1`, token)
}

func (s *PGStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return s.queryOne(ctx,
		`select `+accountColumns+` from accounts
		 where reset_token=$1 and reset_token_expires_at > $2 and not is_deleted`, token, now)
}

func (s *PGStore) Create(ctx context.Context, acc *Account) error {
	if acc.ID == "" {
		acc.ID = ids.New()
	}
	perms, err := json.Marshal(nonNilRules(acc.Permissions))
	if err != nil {
		return err
	}
	locations, err := json.Marshal(nonNilStrings(acc.LocationIDs))
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`insert into accounts(id, email, name, mobile, password_hash, role, permissions, location_ids, is_active, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		acc.ID, acc.Email, acc.Name, acc.Mobile, acc.PasswordHash, string(acc.Role), perms, locations, acc.IsActive, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	acc.CreatedAt = now
	acc.UpdatedAt = now
	return nil
}

func (s *PGStore) Update(ctx context.Context, id string, upd AccountUpdate) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.Permissions != nil {
		perms, err := json.Marshal(nonNilRules(*upd.Permissions))
		if err != nil {
			return err
		}
		set("permissions", perms)
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	if upd.IsLoggedIn != nil {
		set("is_logged_in", *upd.IsLoggedIn)
	}
	if upd.IsRemember != nil {
		set("is_remember", *upd.IsRemember)
	}
	if upd.LastLogin != nil {
		set("last_login", nullTime(*upd.LastLogin))
	}
	if upd.LastLogout != nil {
		set("last_logout", nullTime(*upd.LastLogout))
	}
	if upd.RefreshToken != nil {
		set("refresh_token", nullString(*upd.RefreshToken))
	}
	if upd.ResetToken != nil {
		set("reset_token", nullString(*upd.ResetToken))
	}
	if upd.ResetTokenExpiresAt != nil {
		set("reset_token_expires_at", nullTime(*upd.ResetTokenExpiresAt))
	}
	if upd.IsDeleted != nil {
		set("is_deleted", *upd.IsDeleted)
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf(`update accounts set %s where id=$%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) CountByRole(ctx context.Context, role Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from accounts where role=$1 and not is_deleted`, string(role)).Scan(&n)
	return n, err
}

func (s *PGStore) ResolveLocations(ctx context.Context, locationIDs []string) ([]LocationScope, error) {
	if len(locationIDs) == 0 {
		return []LocationScope{}, nil
	}
	raw, err := json.Marshal(locationIDs)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select l.id, l.name, coalesce(a.name, ''), coalesce(c.name, ''), coalesce(st.name, '')
		 from locations l
		 left join areas a on a.id = l.area_id
		 left join cities c on c.id = a.city_id
		 left join states st on st.id = c.state_id
		 where l.id in (select jsonb_array_elements_text($1::jsonb)) and not l.is_deleted
		 order by l.name`, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LocationScope{}
	for rows.Next() {
		var loc LocationScope
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Area, &loc.City, &loc.State); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PGStore) queryOne(ctx context.Context, query string, args ...any) (*Account, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return acc, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		acc                      Account
		role                     string
		perms, locations         []byte
		lastLogin, lastLogout    sql.NullTime
		refreshToken, resetToken sql.NullString
		resetExpiresAt           sql.NullTime
	)
	if err := row.Scan(&acc.ID, &acc.Email, &acc.Name, &acc.Mobile, &acc.PasswordHash, &role, &perms, &locations,
		&acc.IsActive, &acc.IsLoggedIn, &acc.IsRemember, &lastLogin, &lastLogout,
		&refreshToken, &resetToken, &resetExpiresAt, &acc.IsDeleted, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, err
	}
	acc.Role = Role(role)
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &acc.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if len(locations) > 0 {
		if err := json.Unmarshal(locations, &acc.LocationIDs); err != nil {
			return nil, fmt.Errorf("decode location ids: %w", err)
		}
	}
	acc.LastLogin = lastLogin.Time
	acc.LastLogout = lastLogout.Time
	acc.RefreshToken = refreshToken.String
	acc.ResetToken = resetToken.String
	acc.ResetTokenExpiresAt = resetExpiresAt.Time
	return &acc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nonNilRules(rules []PermissionRule) []PermissionRule {
	if rules == nil {
		return []PermissionRule{}
	}
	return rules
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
