package roles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"porta.dev/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. Supersede-on-assign relies on
// a partial unique index over (user_id, app_name) where is_active.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const assignmentColumns = `id, user_id, app_name, role_name, is_active, granted_by, granted_at, revoked_by, revoked_at`

func (s *PGStore) Assign(ctx context.Context, userID, appName, roleName, actor string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	appName = strings.TrimSpace(strings.ToLower(appName))
	roleName = strings.TrimSpace(strings.ToLower(roleName))
	if userID == "" || appName == "" {
		return Assignment{}, fmt.Errorf("%w: user_id and app_name are required", ErrInvalidInput)
	}
	if !ValidRole(roleName) {
		return Assignment{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, roleName)
	}

	row := s.db.QueryRowContext(ctx,
		`insert into role_assignments(id, user_id, app_name, role_name, is_active, granted_by, granted_at)
		 values($1,$2,$3,$4,true,$5,now())
		 on conflict (user_id, app_name) where is_active
		 do update set role_name=excluded.role_name, granted_by=excluded.granted_by, granted_at=now()
		 returning `+assignmentColumns,
		ids.New(), userID, appName, roleName, actor,
	)
	return scanAssignment(row)
}

func (s *PGStore) Revoke(ctx context.Context, userID, appName, actor string) error {
	res, err := s.db.ExecContext(ctx,
		`update role_assignments
		 set is_active=false, revoked_by=$1, revoked_at=now()
		 where user_id=$2 and app_name=$3 and is_active`,
		actor, userID, strings.ToLower(appName),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+assignmentColumns+` from role_assignments where user_id=$1 order by granted_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) Active(ctx context.Context, userID, appName string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+assignmentColumns+` from role_assignments where user_id=$1 and app_name=$2 and is_active`,
		userID, strings.ToLower(appName))
	a, err := scanAssignment(row)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (Assignment, error) {
	var (
		a         Assignment
		revokedBy sql.NullString
	)
	err := row.Scan(&a.ID, &a.UserID, &a.AppName, &a.RoleName, &a.Active,
		&a.GrantedBy, &a.GrantedAt, &revokedBy, &a.RevokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	a.RevokedBy = revokedBy.String
	return a, nil
}
