package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sprayline/foamops-api/internal/domain"
	"gorm.io/gorm"
)

// OutboxRepository persists side effects queued inside business transactions
type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Insert(ctx context.Context, tx *gorm.DB, event *domain.OutboxEvent) error {
	return conn(r.db, tx).WithContext(ctx).Create(event).Error
}

// FetchPending returns unpublished events that still have attempts left, oldest first
func (r *OutboxRepository) FetchPending(ctx context.Context, limit, maxAttempts int) ([]domain.OutboxEvent, error) {
	var events []domain.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"published_at":  now,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    nil,
		}).Error
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := cause.Error()
	return r.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"last_error":    msg,
		}).Error
}

// CountPending is exported as a gauge by the dispatcher
func (r *OutboxRepository) CountPending(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Count(&n).Error
	return n, err
}
