package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/documents"
	"github.com/sprayline/foamops-api/internal/domain"
	"github.com/sprayline/foamops-api/internal/mapper"
	"github.com/sprayline/foamops-api/internal/metrics"
	"github.com/sprayline/foamops-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// outboxPayload is the estimate as it was when the event was queued
type outboxPayload struct {
	EstimateID string             `json:"estimateId"`
	CompanyID  domain.CompanyID   `json:"companyId"`
	Kind       documents.Kind     `json:"kind"`
	Estimate   domain.EstimateDTO `json:"estimate"`
}

// documentTarget says which document an event renders and where its link is kept
var documentTarget = map[domain.OutboxEventType]struct {
	kind   documents.Kind
	column string
}{
	domain.OutboxEventWorkOrderConfirmed: {documents.KindWorkOrder, "work_order_url"},
	domain.OutboxEventInvoiced:           {documents.KindInvoice, "invoice_url"},
	domain.OutboxEventPaid:               {documents.KindReceipt, ""},
}

// DispatchResult summarises one dispatch run
type DispatchResult struct {
	Published int
	Failed    int
	Pending   int64
}

// OutboxService queues document side effects inside lifecycle transactions and
// delivers them to the renderer later
type OutboxService struct {
	repo         *repository.OutboxRepository
	estimateRepo *repository.EstimateRepository
	settingsRepo *repository.SettingsRepository
	renderer     documents.Renderer
	cfg          config.OutboxConfig
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewOutboxService creates a new OutboxService
func NewOutboxService(
	repo *repository.OutboxRepository,
	estimateRepo *repository.EstimateRepository,
	settingsRepo *repository.SettingsRepository,
	renderer documents.Renderer,
	cfg config.OutboxConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *OutboxService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &OutboxService{
		repo:         repo,
		estimateRepo: estimateRepo,
		settingsRepo: settingsRepo,
		renderer:     renderer,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
	}
}

// Emit queues an event for est on tx. It must run in the transaction that
// made the state change so both commit or neither does.
func (s *OutboxService) Emit(ctx context.Context, tx *gorm.DB, eventType domain.OutboxEventType, est *domain.Estimate) error {
	target, ok := documentTarget[eventType]
	if !ok {
		return fmt.Errorf("unknown outbox event type %q", eventType)
	}
	payload, err := json.Marshal(outboxPayload{
		EstimateID: est.ID.String(),
		CompanyID:  est.CompanyID,
		Kind:       target.kind,
		Estimate:   mapper.ToEstimateDTO(est),
	})
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	event := &domain.OutboxEvent{
		CompanyID:   est.CompanyID,
		EventType:   eventType,
		AggregateID: est.ID,
		Payload:     payload,
	}
	if err := s.repo.Insert(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to queue %s: %w", eventType, err)
	}
	return nil
}

// DispatchPending renders up to one batch of queued events. A failed event
// stays queued with its attempt count raised until MaxAttempts is reached.
func (s *OutboxService) DispatchPending(ctx context.Context) (DispatchResult, error) {
	var result DispatchResult

	events, err := s.repo.FetchPending(ctx, s.cfg.BatchSize, s.cfg.MaxAttempts)
	if err != nil {
		return result, fmt.Errorf("failed to fetch outbox events: %w", err)
	}

	for i := range events {
		if ctx.Err() != nil {
			break
		}
		ev := &events[i]
		err := s.dispatch(ctx, ev)
		s.metrics.OutboxDispatch(string(ev.EventType), err)
		if err != nil {
			result.Failed++
			s.logger.Warn("outbox dispatch failed",
				zap.String("event_id", ev.ID.String()),
				zap.String("event_type", string(ev.EventType)),
				zap.String("estimate_id", ev.AggregateID.String()),
				zap.Int("attempt", ev.AttemptCount+1),
				zap.Error(err))
			if markErr := s.repo.MarkFailed(ctx, ev.ID, err); markErr != nil {
				s.logger.Error("failed to record outbox failure",
					zap.String("event_id", ev.ID.String()),
					zap.Error(markErr))
			}
			if ev.AttemptCount+1 >= s.cfg.MaxAttempts {
				s.logger.Error("outbox event gave up",
					zap.String("event_id", ev.ID.String()),
					zap.String("event_type", string(ev.EventType)),
					zap.Int("max_attempts", s.cfg.MaxAttempts))
			}
			continue
		}
		if err := s.repo.MarkPublished(ctx, ev.ID); err != nil {
			return result, fmt.Errorf("failed to mark outbox event published: %w", err)
		}
		result.Published++
	}

	pending, err := s.repo.CountPending(ctx, s.cfg.MaxAttempts)
	if err != nil {
		s.logger.Warn("failed to count pending outbox events", zap.Error(err))
	} else {
		result.Pending = pending
		s.metrics.OutboxPending(pending)
	}
	return result, nil
}

func (s *OutboxService) dispatch(ctx context.Context, ev *domain.OutboxEvent) error {
	target, ok := documentTarget[ev.EventType]
	if !ok {
		return fmt.Errorf("unknown outbox event type %q", ev.EventType)
	}

	var payload outboxPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("malformed outbox payload: %w", err)
	}

	settings, err := s.settingsRepo.Get(ctx, nil, ev.CompanyID)
	if err != nil {
		return fmt.Errorf("failed to load company profile: %w", err)
	}

	url, err := s.renderer.Render(ctx, documents.Request{
		Kind:     target.kind,
		Company:  settings.Profile.Data(),
		Estimate: payload.Estimate,
	})
	if err != nil {
		return err
	}

	if url != "" && target.column != "" {
		if err := s.estimateRepo.SetDocumentURL(ctx, ev.CompanyID, ev.AggregateID, target.column, url); err != nil {
			return fmt.Errorf("failed to store document url: %w", err)
		}
	}
	return nil
}
