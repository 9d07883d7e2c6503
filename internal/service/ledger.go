package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-billing-api/internal/models"
	"github.com/noah-isme/sma-billing-api/internal/repository"
	"github.com/noah-isme/sma-billing-api/pkg/clock"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

const defaultMaxInstallments = 36

// LedgerObserver reacts to ledger mutations after they commit.
type LedgerObserver interface {
	OnBillingCommitted(ctx context.Context, event models.BillingEvent)
}

// LedgerObserverFunc allows plain functions as observers.
type LedgerObserverFunc func(ctx context.Context, event models.BillingEvent)

// OnBillingCommitted implements LedgerObserver.
func (f LedgerObserverFunc) OnBillingCommitted(ctx context.Context, event models.BillingEvent) {
	f(ctx, event)
}

type billingMutator interface {
	Mutate(ctx context.Context, id string, fn repository.BillingMutation) (*repository.BillingChange, error)
}

type ledgerOptions struct {
	clock           clock.Clock
	observers       []LedgerObserver
	metrics         *MetricsService
	maxInstallments int
	numberPrefix    string
}

// LedgerOption configures the ledger services.
type LedgerOption func(*ledgerOptions)

// WithLedgerClock overrides the time source.
func WithLedgerClock(c clock.Clock) LedgerOption {
	return func(o *ledgerOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLedgerObservers registers post-commit observers.
func WithLedgerObservers(observers ...LedgerObserver) LedgerOption {
	return func(o *ledgerOptions) {
		for _, obs := range observers {
			if obs != nil {
				o.observers = append(o.observers, obs)
			}
		}
	}
}

// WithLedgerMetrics records operation outcomes.
func WithLedgerMetrics(metrics *MetricsService) LedgerOption {
	return func(o *ledgerOptions) { o.metrics = metrics }
}

// WithMaxInstallments bounds installment plans.
func WithMaxInstallments(max int) LedgerOption {
	return func(o *ledgerOptions) {
		if max > 0 {
			o.maxInstallments = max
		}
	}
}

// WithBillNumberPrefix sets the bill number prefix.
func WithBillNumberPrefix(prefix string) LedgerOption {
	return func(o *ledgerOptions) {
		if p := strings.TrimSpace(prefix); p != "" {
			o.numberPrefix = p
		}
	}
}

func buildLedgerOptions(opts []LedgerOption) ledgerOptions {
	o := ledgerOptions{
		clock:           clock.NewSystem(nil),
		maxInstallments: defaultMaxInstallments,
		numberPrefix:    "INV",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o ledgerOptions) committed(ctx context.Context, logger *zap.Logger, event models.BillingEvent) {
	o.metrics.RecordLedgerOperation(string(event.Action), "success")
	logger.Info("billing ledger mutation committed",
		zap.String("action", string(event.Action)),
		zap.String("billing_id", event.Billing.ID),
		zap.String("actor_id", event.Actor.ID),
		zap.Int("version", event.Billing.Version))
	for _, obs := range o.observers {
		obs.OnBillingCommitted(ctx, event)
	}
}

func (o ledgerOptions) rejected(action models.ActivityAction, err error) {
	outcome := "error"
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		outcome = strings.ToLower(appErr.Code)
	}
	o.metrics.RecordLedgerOperation(string(action), outcome)
}

// storeError maps repository failures onto ledger error kinds.
func storeError(err error, notFound, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		return appErrors.Wrap(err, appErrors.ErrConcurrencyConflict.Code, appErrors.ErrConcurrencyConflict.Status, appErrors.ErrConcurrencyConflict.Message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return appErrors.Wrap(err, appErrors.ErrConcurrencyConflict.Code, appErrors.ErrConcurrencyConflict.Status, appErrors.ErrConcurrencyConflict.Message)
		}
	}
	return appErrors.Persistence(err, message)
}

func requireActor(actor models.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "actor identity is required")
	}
	return nil
}

func ensureOpen(billing *models.Billing) error {
	switch billing.Status {
	case models.BillingStatusPaid:
		return appErrors.Clone(appErrors.ErrInvalidState, "billing already paid")
	case models.BillingStatusWaived:
		return appErrors.Clone(appErrors.ErrInvalidState, "billing already waived")
	}
	return nil
}

func invalidArgument(message string) error {
	return appErrors.Clone(appErrors.ErrInvalidArgument, message)
}

func activityDetails(details map[string]interface{}) json.RawMessage {
	raw, err := json.Marshal(details)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

func newActivity(actor models.Actor, action models.ActivityAction, billingID string, details map[string]interface{}, at time.Time) *models.ActivityLog {
	return &models.ActivityLog{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: models.EntityBilling,
		EntityID:   billingID,
		Details:    activityDetails(details),
		CreatedAt:  at,
	}
}

func presentBilling(b *models.Billing, o ledgerOptions) *models.Billing {
	if b == nil {
		return nil
	}
	out := *b
	out.Status = out.EffectiveStatus(o.clock.Now())
	return &out
}
