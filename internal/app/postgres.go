package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const appColumns = `app_name, app_display_name, app_secret, allowed_origins, redirect_urls, status, secret_expires_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, a *App) error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	origins, _ := json.Marshal(a.AllowedOrigins)
	redirects, _ := json.Marshal(a.RedirectURLs)
	_, err := s.db.ExecContext(ctx,
		`insert into registered_apps(app_name, app_display_name, app_secret, allowed_origins, redirect_urls, status, secret_expires_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		a.Name, a.DisplayName, a.Secret, origins, redirects, a.Status, a.SecretExpiresAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, name string) (*App, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+appColumns+` from registered_apps where app_name=$1`, name)
	return scanApp(row)
}

func (s *PGStore) FindActive(ctx context.Context, name string) (*App, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+appColumns+` from registered_apps where app_name=$1 and status=$2`, name, StatusActive)
	return scanApp(row)
}

func (s *PGStore) List(ctx context.Context) ([]*App, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+appColumns+` from registered_apps order by created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []*App
	for rows.Next() {
		a, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *PGStore) Update(ctx context.Context, name string, upd Update) (*App, error) {
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return nil, ErrInvalidInput
	}
	current, err := s.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if upd.DisplayName != nil {
		current.DisplayName = *upd.DisplayName
	}
	if upd.AllowedOrigins != nil {
		current.AllowedOrigins = upd.AllowedOrigins
	}
	if upd.RedirectURLs != nil {
		current.RedirectURLs = upd.RedirectURLs
	}
	if upd.Status != nil {
		current.Status = *upd.Status
	}
	origins, _ := json.Marshal(current.AllowedOrigins)
	redirects, _ := json.Marshal(current.RedirectURLs)
	row := s.db.QueryRowContext(ctx,
		`update registered_apps
		 set app_display_name=$1, allowed_origins=$2, redirect_urls=$3, status=$4, updated_at=now()
		 where app_name=$5
		 returning updated_at`,
		current.DisplayName, origins, redirects, current.Status, name,
	)
	if err := row.Scan(&current.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return current, nil
}

func (s *PGStore) Disable(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`update registered_apps set status=$1, updated_at=now() where app_name=$2`,
		StatusDisabled, name,
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

// RotateSecret is a single conditional update: secret, expiry and updated_at
// change in one statement, so concurrent rotations are last-writer-wins and
// readers never see a half-updated record.
func (s *PGStore) RotateSecret(ctx context.Context, name, secret string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`update registered_apps set app_secret=$1, secret_expires_at=$2, updated_at=now() where app_name=$3`,
		secret, expiresAt, name,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (*App, error) {
	var (
		a         App
		origins   []byte
		redirects []byte
	)
	err := row.Scan(&a.Name, &a.DisplayName, &a.Secret, &origins, &redirects,
		&a.Status, &a.SecretExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(origins, &a.AllowedOrigins)
	_ = json.Unmarshal(redirects, &a.RedirectURLs)
	return &a, nil
}
