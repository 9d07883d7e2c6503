package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/pkg/jobs"
)

const billingNotificationJob = "billing_notification"

// BillingNotification is the message sent to guardians or finance staff after
// a ledger mutation commits.
type BillingNotification struct {
	Action      models.ActivityAction `json:"action"`
	BillingID   string                `json:"billingId"`
	BillNumber  string                `json:"billNumber"`
	StudentID   string                `json:"studentId"`
	Status      models.BillingStatus  `json:"status"`
	Amount      decimal.Decimal       `json:"amount"`
	Outstanding decimal.Decimal       `json:"outstanding"`
	ActorID     string                `json:"actorId"`
	OccurredAt  time.Time             `json:"occurredAt"`
}

// Notifier delivers billing notifications.
type Notifier interface {
	Notify(ctx context.Context, n BillingNotification) error
}

// LogNotifier writes notifications to the structured log. It is the default
// channel until an SMS or WhatsApp gateway is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, msg BillingNotification) error {
	n.logger.Info("billing notification",
		zap.String("action", string(msg.Action)),
		zap.String("billing_id", msg.BillingID),
		zap.String("bill_number", msg.BillNumber),
		zap.String("student_id", msg.StudentID),
		zap.String("status", string(msg.Status)),
		zap.String("amount", msg.Amount.StringFixed(2)),
		zap.String("outstanding", msg.Outstanding.StringFixed(2)))
	return nil
}

// BillingNotificationService fans committed ledger events out to a Notifier
// through a background queue so delivery never affects the ledger outcome.
type BillingNotificationService struct {
	notifier Notifier
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewBillingNotificationService builds the service and its worker queue.
func NewBillingNotificationService(notifier Notifier, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *BillingNotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	s := &BillingNotificationService{notifier: notifier, metrics: metrics, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("billing-notifications", s.deliver, cfg)
	return s
}

// Start launches the delivery workers.
func (s *BillingNotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries and stops the workers. Queued
// notifications that have not started are discarded.
func (s *BillingNotificationService) Stop() {
	s.queue.Stop()
}

// Stats exposes queue counters.
func (s *BillingNotificationService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// OnBillingCommitted enqueues a notification for event.
func (s *BillingNotificationService) OnBillingCommitted(_ context.Context, event models.BillingEvent) {
	msg := BillingNotification{
		Action:      event.Action,
		BillingID:   event.Billing.ID,
		BillNumber:  event.Billing.BillNumber,
		StudentID:   event.Billing.StudentID,
		Status:      event.Billing.Status,
		Amount:      event.Amount,
		Outstanding: event.Billing.Outstanding(),
		ActorID:     event.Actor.ID,
		OccurredAt:  event.OccurredAt,
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    billingNotificationJob,
		Payload: msg,
	})
	if err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("billing notification dropped",
			zap.String("billing_id", msg.BillingID),
			zap.String("action", string(msg.Action)),
			zap.Error(err))
		return
	}
	s.metrics.RecordNotification("enqueued")
}

func (s *BillingNotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(BillingNotification)
	if !ok {
		s.metrics.RecordNotification("invalid")
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("delivered")
	return nil
}
