package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/repositories"
	"go.uber.org/zap"
)

// Record is an audit log row prepared for display
type Record struct {
	*models.AuditLog
	ActionLabel string `json:"action_label"`
	ActorName   string `json:"actor_name"`
}

// Reader lists audit log entries with display labels and actor names
type Reader struct {
	audits repositories.AuditRepository
	users  repositories.UserRepository
	logger *zap.Logger
}

// NewReader creates a new Reader
func NewReader(audits repositories.AuditRepository, users repositories.UserRepository, logger *zap.Logger) *Reader {
	return &Reader{audits: audits, users: users, logger: logger}
}

// List returns audit entries newest first
func (r *Reader) List(ctx context.Context, filter repositories.AuditFilter) ([]*Record, error) {
	logs, err := r.audits.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	names := make(map[uuid.UUID]string)
	records := make([]*Record, 0, len(logs))
	for _, log := range logs {
		records = append(records, &Record{
			AuditLog:    log,
			ActionLabel: log.Action.Label(),
			ActorName:   r.actorName(ctx, log.UserID, names),
		})
	}
	return records, nil
}

func (r *Reader) actorName(ctx context.Context, id *uuid.UUID, cache map[uuid.UUID]string) string {
	if id == nil {
		return "System"
	}
	if name, ok := cache[*id]; ok {
		return name
	}
	name := "Deleted user"
	if user, err := r.users.GetByID(ctx, *id); err == nil {
		name = user.FullName()
	} else {
		r.logger.Debug("audit actor lookup failed", zap.String("user_id", id.String()), zap.Error(err))
	}
	cache[*id] = name
	return name
}
