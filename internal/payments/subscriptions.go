package payments

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

type subscriptionTarget struct {
	sub        *models.Subscription
	externalID string
	payment    *models.Payment
	adapter    gateway.Adapter
}

// CancelSubscription cancels with the provider and closes the local record.
func (s *service) CancelSubscription(ctx context.Context, input CancelSubscriptionInput) (res Result) {
	base := Result{Status: StatusFailed, SubscriptionID: input.SubscriptionID, PaymentType: string(enums.PaymentTypeRecurring)}
	defer s.recoverInto(ctx, &res, base, "cancel subscription")

	target, err := s.locateSubscription(ctx, input.SubscriptionID)
	if err != nil {
		return s.subscriptionFailure(ctx, base, err)
	}
	base = target.base(base)
	if target.sub.Status == enums.SubscriptionStatusCancelled || target.sub.Status == enums.SubscriptionStatusExpired {
		return s.subscriptionFailure(ctx, base, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("subscription is %s", target.sub.Status)))
	}

	resp := target.adapter.CancelSubscription(ctx, target.externalID, input.CancelAtPeriodEnd)
	if !resp.Success {
		return gatewayFailure(base, resp)
	}
	atPeriodEnd := input.CancelAtPeriodEnd
	if resp.SubscriptionDetails != nil {
		atPeriodEnd = resp.SubscriptionDetails.CancelAtPeriodEnd
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.subs.CancelWithTx(ctx, tx, target.sub, subscriptions.CancelInput{
			Reason:      input.Reason,
			AtPeriodEnd: atPeriodEnd,
			Details:     resp.SubscriptionDetails,
		})
	})
	if err != nil {
		return s.subscriptionFailure(ctx, base, err)
	}

	if s.logg != nil {
		logCtx := s.logg.WithProvider(ctx, target.sub.PaymentGateway)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"subscription_id": target.sub.ID.String(),
			"at_period_end":   atPeriodEnd,
		})
		s.logg.Info(logCtx, "subscription cancelled")
	}
	return target.success(base, resp)
}

// UpdateSubscription changes price, payment method or metadata with the
// provider and syncs the local record from the response.
func (s *service) UpdateSubscription(ctx context.Context, input UpdateSubscriptionInput) (res Result) {
	base := Result{Status: StatusFailed, SubscriptionID: input.SubscriptionID, PaymentType: string(enums.PaymentTypeRecurring)}
	defer s.recoverInto(ctx, &res, base, "update subscription")

	if input.Amount != nil {
		if err := gateway.ValidateAmount(*input.Amount); err != nil {
			return s.subscriptionFailure(ctx, base, err)
		}
	}
	target, err := s.locateSubscription(ctx, input.SubscriptionID)
	if err != nil {
		return s.subscriptionFailure(ctx, base, err)
	}
	base = target.base(base)

	resp := target.adapter.UpdateSubscription(ctx, target.externalID, gateway.SubscriptionUpdateRequest{
		Amount:          input.Amount,
		PaymentMethodID: input.PaymentMethodID,
		Metadata:        input.Metadata,
	})
	if !resp.Success {
		return gatewayFailure(base, resp)
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.subs.SyncWithTx(ctx, tx, target.sub, resp.SubscriptionDetails)
	})
	if err != nil {
		return s.subscriptionFailure(ctx, base, err)
	}
	return target.success(base, resp)
}

// RetrieveSubscription reads the agreement from its provider. A miss reports
// NOT_FOUND.
func (s *service) RetrieveSubscription(ctx context.Context, subscriptionID string) (res Result) {
	base := Result{Status: StatusNotFound, SubscriptionID: subscriptionID, PaymentType: string(enums.PaymentTypeRecurring)}
	defer s.recoverInto(ctx, &res, base, "retrieve subscription")

	target, err := s.locateSubscription(ctx, subscriptionID)
	if err != nil {
		return s.subscriptionFailure(ctx, base, err)
	}
	base = target.base(base)
	resp := target.adapter.RetrieveSubscription(ctx, target.externalID)
	if !resp.Success {
		base = gatewayFailure(base, resp)
		base.Status = StatusNotFound
		return base
	}
	out := target.success(base, resp)
	if resp.SubscriptionDetails != nil && resp.SubscriptionDetails.Status != "" {
		out.Status = string(subscriptions.MapProviderStatus(resp.SubscriptionDetails.Status))
	}
	return out
}

// SubscriptionPayments lists the payments of a subscription, newest first.
func (s *service) SubscriptionPayments(ctx context.Context, subscriptionID string) ([]Result, error) {
	sub, err := s.subs.Resolve(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	external := ""
	if sub.ExternalSubscriptionID != nil {
		external = *sub.ExternalSubscriptionID
	}
	rows, err := s.repo.ListBySubscription(ctx, sub.ID, external)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscription payments")
	}
	return resultsFromPayments(rows), nil
}

// locateSubscription resolves the record, its provider adapter and the latest
// payment carrying its external id.
func (s *service) locateSubscription(ctx context.Context, ref string) (*subscriptionTarget, error) {
	sub, err := s.subs.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sub.ExternalSubscriptionID == nil || *sub.ExternalSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription has no provider id")
	}
	if sub.PaymentGateway == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "subscription has no stored gateway")
	}
	adapter, err := s.gateways.Get(sub.PaymentGateway)
	if err != nil {
		return nil, err
	}
	target := &subscriptionTarget{sub: sub, externalID: *sub.ExternalSubscriptionID, adapter: adapter}
	payment, err := s.repo.FindLatestByExternalSubscriptionID(ctx, target.externalID)
	switch {
	case err == nil:
		target.payment = payment
	case !db.IsNotFound(err):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription payment")
	}
	return target, nil
}

func (s *service) subscriptionFailure(ctx context.Context, base Result, err error) Result {
	out := s.failure(ctx, base, err)
	if out.Status == StatusNotFound {
		out.ErrorCode = CodeSubscriptionNotFound
	}
	return out
}

func (t *subscriptionTarget) base(base Result) Result {
	base.SubscriptionID = t.sub.ID.String()
	base.ExternalSubscriptionID = t.externalID
	base.PaymentGateway = t.sub.PaymentGateway
	if t.payment != nil {
		base.PaymentID = t.payment.PaymentID
		if t.payment.ExternalTransactionID != nil {
			base.ExternalTransactionID = *t.payment.ExternalTransactionID
		}
		amount := t.payment.Amount
		base.Amount = &amount
		base.Currency = t.payment.Currency
	}
	return base
}

// success reports the record's canonical status with the provider details.
func (t *subscriptionTarget) success(base Result, resp gateway.Response) Result {
	base.Success = true
	base.Status = string(t.sub.Status)
	base.SubscriptionDetails = resp.SubscriptionDetails
	base.Metadata = resp.Metadata
	base.ErrorCode = ""
	base.ErrorMessage = ""
	if resp.Amount != nil {
		base.Amount = resp.Amount
	}
	if resp.Currency != "" {
		base.Currency = resp.Currency
	}
	return base
}
