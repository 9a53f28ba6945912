package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/evaluation-service/internal/config"
	"github.com/spec-kit/evaluation-service/internal/events"
)

// NotificationService handles emitting notifications for lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventEvaluationCreated, n.handleEvaluationCreated)
	n.dispatcher.Subscribe(events.EventEvaluationEvaluated, n.handleEvaluationEvaluated)
	n.dispatcher.Subscribe(events.EventEvaluationExpired, n.handleEvaluationExpired)
}

func (n *NotificationService) handleEvaluationCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("EvaluationCreated", zap.String("evaluation_id", event.EvaluationID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEvaluationEvaluated(ctx context.Context, event events.Event) error {
	n.logger.Info("EvaluationEvaluated", zap.String("evaluation_id", event.EvaluationID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleEvaluationExpired(ctx context.Context, event events.Event) error {
	n.logger.Info("EvaluationExpired", zap.String("evaluation_id", event.EvaluationID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("evaluation_id", event.EvaluationID),
		zap.String("event_type", string(event.Type)))
}
