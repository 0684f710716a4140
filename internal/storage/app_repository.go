package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/types"
)

// AppRepository handles app persistence
type AppRepository struct {
	db *PostgresDB
}

// NewAppRepository creates a new app repository
func NewAppRepository(db *PostgresDB) *AppRepository {
	return &AppRepository{db: db}
}

// Create creates a new app
func (r *AppRepository) Create(ctx context.Context, app *types.App) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	query := `
		INSERT INTO apps (id, name, domain, client_email, private_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		app.ID,
		app.Name,
		app.Domain,
		app.ClientEmail,
		app.PrivateKey,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		return apperrors.NewLocalFailure("app create", err)
	}

	return nil
}

// GetByID retrieves an app by ID
func (r *AppRepository) GetByID(ctx context.Context, id string) (*types.App, error) {
	query := `
		SELECT id, name, domain, client_email, private_key, created_at, updated_at
		FROM apps
		WHERE id = $1
	`

	var app types.App
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&app.ID,
		&app.Name,
		&app.Domain,
		&app.ClientEmail,
		&app.PrivateKey,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("app", id)
		}
		return nil, apperrors.NewLocalFailure("app lookup", err)
	}

	return &app, nil
}

// List returns all apps, newest first
func (r *AppRepository) List(ctx context.Context) ([]*types.App, error) {
	query := `
		SELECT id, name, domain, client_email, private_key, created_at, updated_at
		FROM apps
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, apperrors.NewLocalFailure("app list", err)
	}
	defer rows.Close()

	var apps []*types.App
	for rows.Next() {
		var app types.App
		if err := rows.Scan(
			&app.ID,
			&app.Name,
			&app.Domain,
			&app.ClientEmail,
			&app.PrivateKey,
			&app.CreatedAt,
			&app.UpdatedAt,
		); err != nil {
			return nil, apperrors.NewLocalFailure("app scan", err)
		}
		apps = append(apps, &app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewLocalFailure("app list", err)
	}

	return apps, nil
}

// Delete removes an app by ID
func (r *AppRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewLocalFailure("app delete", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("app", id)
	}
	return nil
}

// UpdateDomain updates the domain of an existing app
func (r *AppRepository) UpdateDomain(ctx context.Context, id, domain string) error {
	query := `UPDATE apps SET domain = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Pool().Exec(ctx, query, id, domain, time.Now().UTC())
	if err != nil {
		return apperrors.NewLocalFailure("app update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("app", id)
	}
	return nil
}
