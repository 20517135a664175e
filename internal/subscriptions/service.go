package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service keeps local subscription records in step with provider agreements.
// Every write runs inside the caller's transaction.
type Service interface {
	Resolve(ctx context.Context, ref string) (*models.Subscription, error)
	OpenWithTx(ctx context.Context, tx *gorm.DB, input OpenInput) (*models.Subscription, error)
	CancelWithTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, input CancelInput) error
	SyncWithTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, details *gateway.SubscriptionDetails) error
}

// OpenInput carries what a successful createSubscription call produced.
type OpenInput struct {
	UserID       uuid.UUID
	ProductID    string
	OrderID      *uuid.UUID
	Plan         string
	BillingCycle enums.BillingInterval
	Provider     enums.PaymentProvider
	ExternalID   string
	Status       string
	Details      *gateway.SubscriptionDetails
	Actor        *outbox.ActorRef
}

type CancelInput struct {
	Reason      string
	AtPeriodEnd bool
	Details     *gateway.SubscriptionDetails
	Actor       *outbox.ActorRef
}

// ServiceParams wires the subscription service collaborators.
type ServiceParams struct {
	Repository Repository
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("subscriptions repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repository,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    clock,
	}, nil
}

// Resolve accepts the record uuid or the provider subscription id.
func (s *service) Resolve(ctx context.Context, ref string) (*models.Subscription, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	sub, err := s.repo.FindByReference(ctx, ref)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return sub, nil
}

// OpenWithTx creates the record for a new provider subscription, or links the
// latest order to the record already keyed by the same external id.
func (s *service) OpenWithTx(ctx context.Context, tx *gorm.DB, input OpenInput) (*models.Subscription, error) {
	if strings.TrimSpace(input.ExternalID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external subscription id required")
	}
	repo := s.repo.WithTx(tx)
	status := MapProviderStatus(input.Status)

	existing, err := repo.FindByExternalID(ctx, input.ExternalID)
	switch {
	case err == nil:
		if input.OrderID != nil {
			existing.LatestOrderID = input.OrderID
		}
		from := existing.Status
		existing.Status = status
		if err := repo.Save(ctx, existing); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		if from != status {
			if err := s.emitStatusChange(ctx, tx, existing, from, "", input.Actor); err != nil {
				return nil, err
			}
		}
		return existing, nil
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	now := s.now().UTC()
	cycle := input.BillingCycle
	if !cycle.IsValid() {
		cycle = enums.BillingIntervalMonthly
	}
	externalID := input.ExternalID
	sub := &models.Subscription{
		UserID:                 input.UserID,
		ProductID:              input.ProductID,
		FirstOrderID:           input.OrderID,
		LatestOrderID:          input.OrderID,
		SubscriptionPlan:       input.Plan,
		BillingCycle:           string(cycle),
		ExternalSubscriptionID: &externalID,
		PaymentGateway:         string(input.Provider),
		Status:                 status,
		StartDate:              now,
	}
	applyPeriod(sub, input.Details, cycle)

	if _, err := repo.Create(ctx, sub); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionCreated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         input.Actor,
		Data: payloads.SubscriptionCreatedEvent{
			SubscriptionID:         sub.ID,
			ExternalSubscriptionID: externalID,
			UserID:                 sub.UserID,
			ProductID:              sub.ProductID,
			Provider:               sub.PaymentGateway,
			Status:                 sub.Status,
		},
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID.String(),
			"external_id":     externalID,
			"status":          sub.Status,
		})
		s.logg.Info(logCtx, "subscription opened")
	}
	return sub, nil
}

// CancelWithTx marks the record CANCELLED. A period-end cancellation keeps the
// current period as the end date.
func (s *service) CancelWithTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, input CancelInput) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	now := s.now().UTC()
	from := sub.Status

	sub.Status = enums.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		sub.CancelReason = &reason
	}
	end := now
	if input.AtPeriodEnd {
		switch {
		case input.Details != nil && input.Details.CurrentPeriodEnd != nil:
			end = input.Details.CurrentPeriodEnd.UTC()
		case sub.NextBillingDate.After(now):
			end = sub.NextBillingDate
		}
	}
	sub.EndDate = &end

	if err := s.repo.WithTx(tx).Save(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
	}
	if from == sub.Status {
		return nil
	}
	return s.emitStatusChange(ctx, tx, sub, from, input.Reason, input.Actor)
}

// SyncWithTx applies provider-reported status and billing period to the record.
func (s *service) SyncWithTx(ctx context.Context, tx *gorm.DB, sub *models.Subscription, details *gateway.SubscriptionDetails) error {
	if sub == nil || details == nil {
		return nil
	}
	from := sub.Status
	if details.Status != "" {
		sub.Status = MapProviderStatus(details.Status)
	}
	if details.CurrentPeriodEnd != nil {
		sub.NextBillingDate = details.CurrentPeriodEnd.UTC()
	}
	if details.TrialEnd != nil {
		trialEnd := details.TrialEnd.UTC()
		sub.TrialEndDate = &trialEnd
	}
	if err := s.repo.WithTx(tx).Save(ctx, sub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sync subscription")
	}
	if from == sub.Status {
		return nil
	}
	return s.emitStatusChange(ctx, tx, sub, from, "provider sync", nil)
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, sub *models.Subscription, from enums.SubscriptionStatus, reason string, actor *outbox.ActorRef) error {
	external := ""
	if sub.ExternalSubscriptionID != nil {
		external = *sub.ExternalSubscriptionID
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionStatusChanged,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         actor,
		Data: payloads.SubscriptionStatusChangedEvent{
			SubscriptionID:         sub.ID,
			ExternalSubscriptionID: external,
			From:                   from,
			To:                     sub.Status,
			Reason:                 reason,
			ChangedAt:              s.now().UTC(),
		},
	})
}

// applyPeriod fills start, next billing and trial end from provider details,
// computing the next billing date from the cycle when the provider omits it.
func applyPeriod(sub *models.Subscription, details *gateway.SubscriptionDetails, cycle enums.BillingInterval) {
	if details != nil && details.CurrentPeriodStart != nil {
		sub.StartDate = details.CurrentPeriodStart.UTC()
	}
	if details != nil && details.TrialEnd != nil {
		trialEnd := details.TrialEnd.UTC()
		sub.TrialEndDate = &trialEnd
	}
	switch {
	case details != nil && details.CurrentPeriodEnd != nil:
		sub.NextBillingDate = details.CurrentPeriodEnd.UTC()
	case sub.TrialEndDate != nil:
		sub.NextBillingDate = *sub.TrialEndDate
	default:
		sub.NextBillingDate = NextBillingDate(sub.StartDate, cycle)
	}
}

// NextBillingDate advances from by one billing cycle.
func NextBillingDate(from time.Time, cycle enums.BillingInterval) time.Time {
	unit, count := cycle.GatewayInterval()
	switch unit {
	case enums.GatewayIntervalDay:
		return from.AddDate(0, 0, count)
	case enums.GatewayIntervalWeek:
		return from.AddDate(0, 0, 7*count)
	case enums.GatewayIntervalYear:
		return from.AddDate(count, 0, 0)
	default:
		return from.AddDate(0, count, 0)
	}
}
