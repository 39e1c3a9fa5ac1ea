package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/team-hierarchy-service/internal/config"
	"github.com/spec-kit/team-hierarchy-service/internal/events"
)

const (
	auditQueueSize      = 256
	auditWebhookTimeout = 5 * time.Second
)

// WebhookSender delivers one audit event to an external endpoint.
type WebhookSender func(ctx context.Context, url string, event events.Event) error

// AuditService records hierarchy events and forwards them to an optional webhook.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
	send       WebhookSender
	queue      chan events.Event
}

// NewAuditService creates the service. A nil sender posts JSON with the fiber client.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig, send WebhookSender) *AuditService {
	if send == nil {
		send = postWebhook
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		send:       send,
		queue:      make(chan events.Event, auditQueueSize),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventHierarchyBuilt, a.handleHierarchyBuilt)
	a.dispatcher.Subscribe(events.EventHierarchyFiltered, a.handleHierarchyFiltered)
	a.dispatcher.Subscribe(events.EventHierarchyRejected, a.handleHierarchyRejected)
}

// Run delivers queued webhook events until ctx is cancelled.
func (a *AuditService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-a.queue:
			sendCtx, cancel := context.WithTimeout(ctx, auditWebhookTimeout)
			if err := a.send(sendCtx, a.cfg.WebhookURL, event); err != nil {
				a.logger.Warn("audit webhook failed",
					zap.String("event_id", event.ID),
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
			cancel()
		}
	}
}

func (a *AuditService) handleHierarchyBuilt(ctx context.Context, event events.Event) error {
	a.logger.Info("HierarchyBuilt", zap.String("snapshot_id", event.SnapshotID), zap.Any("payload", event.Payload))
	a.enqueueWebhook(event)
	return nil
}

func (a *AuditService) handleHierarchyFiltered(ctx context.Context, event events.Event) error {
	a.logger.Info("HierarchyFiltered", zap.String("snapshot_id", event.SnapshotID), zap.Any("payload", event.Payload))
	return nil
}

func (a *AuditService) handleHierarchyRejected(ctx context.Context, event events.Event) error {
	a.logger.Info("HierarchyRejected", zap.String("checksum", event.Checksum), zap.Any("payload", event.Payload))
	a.enqueueWebhook(event)
	return nil
}

func (a *AuditService) enqueueWebhook(event events.Event) {
	if strings.TrimSpace(a.cfg.WebhookURL) == "" {
		return
	}
	select {
	case a.queue <- event:
	default:
		a.logger.Warn("audit queue full; dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
}

func postWebhook(ctx context.Context, url string, event events.Event) error {
	agent := fiber.Post(url).JSON(event)
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	}
	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if status >= 300 {
		return fmt.Errorf("webhook responded with status %d", status)
	}
	return nil
}
