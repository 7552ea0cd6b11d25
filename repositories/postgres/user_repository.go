package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"go.uber.org/zap"
)

const userColumns = `id, external_id, email, first_name, last_name, image_url, role, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.ImageURL,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return translate("create user", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate("get user", err)
	}
	return u, nil
}

// GetByExternalID retrieves a user by identity provider subject
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, translate("get user by external id", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, translate("get user by email", err)
	}
	return u, nil
}

// List retrieves users, newest first
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// Upsert inserts or refreshes a user keyed by external ID; the stored role survives
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_id) DO UPDATE
		SET email = EXCLUDED.email,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    image_url = EXCLUDED.image_url,
		    updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.ImageURL,
		user.Role,
		user.CreatedAt,
		user.UpdatedAt,
	))
	if err != nil {
		return nil, translate("upsert user", err)
	}

	r.logger.Debug("user upserted", zap.String("id", u.ID.String()), zap.String("external_id", u.ExternalID))
	return u, nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	query := `
		UPDATE users
		SET role = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id, role, time.Now()))
	if err != nil {
		return nil, translate("update user role", err)
	}

	r.logger.Debug("user role updated", zap.String("id", id.String()), zap.String("role", string(role)))
	return u, nil
}

// DeleteByExternalID removes a user and returns the deleted row
func (r *UserRepository) DeleteByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `DELETE FROM users WHERE external_id = $1 RETURNING ` + userColumns

	u, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, translate("delete user", err)
	}

	r.logger.Debug("user deleted", zap.String("external_id", externalID))
	return u, nil
}
