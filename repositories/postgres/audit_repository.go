package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert appends an audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, action, meta, logged_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	meta := []byte(log.Meta)
	if len(meta) == 0 {
		meta = []byte(`{}`)
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		log.ID,
		log.UserID,
		log.Action,
		meta,
		log.LoggedAt,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// List retrieves audit log entries, newest first
func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT id, user_id, action, meta, logged_at, created_at FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		l := &models.AuditLog{}
		var meta []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &meta, &l.LoggedAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		l.Meta = meta
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}

	return logs, nil
}
