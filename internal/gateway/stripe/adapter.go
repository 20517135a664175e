// Package stripe adapts Stripe payment intents, refunds and subscriptions to
// the gateway contract.
package stripe

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/money"
	pkgstripe "github.com/openbillingstore/billing-core/pkg/stripe"
)

const (
	CodeCreate               = "STRIPE_ERROR"
	CodeConfirm              = "STRIPE_CONFIRM_ERROR"
	CodeCancel               = "STRIPE_CANCEL_ERROR"
	CodeRefund               = "STRIPE_REFUND_ERROR"
	CodeRetrieve             = "STRIPE_RETRIEVE_ERROR"
	CodeSubscription         = "STRIPE_SUBSCRIPTION_ERROR"
	CodeCancelSubscription   = "STRIPE_CANCEL_SUBSCRIPTION_ERROR"
	CodeUpdateSubscription   = "STRIPE_UPDATE_SUBSCRIPTION_ERROR"
	CodeRetrieveSubscription = "STRIPE_RETRIEVE_SUBSCRIPTION_ERROR"
)

// API is the subset of pkg/stripe the adapter calls.
type API interface {
	CreatePaymentIntent(ctx context.Context, p pkgstripe.PaymentIntentCreateParams) (*pkgstripe.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id string) (*pkgstripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*pkgstripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*pkgstripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (*pkgstripe.Refund, error)
	CreateSubscription(ctx context.Context, p pkgstripe.SubscriptionCreateParams) (*pkgstripe.Subscription, error)
	CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*pkgstripe.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, p pkgstripe.SubscriptionUpdateParams) (*pkgstripe.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*pkgstripe.Subscription, error)
}

type Adapter struct {
	api API
}

func New(api API) *Adapter {
	return &Adapter{api: api}
}

func (a *Adapter) Name() enums.PaymentProvider { return enums.PaymentProviderStripe }

func (a *Adapter) CreatePayment(ctx context.Context, req gateway.PaymentRequest) gateway.Response {
	return gateway.Safely(CodeCreate, func() (gateway.Response, error) {
		if err := gateway.ValidateAmount(req.Amount); err != nil {
			return gateway.Response{}, err
		}
		currency, err := gateway.ValidateCurrency(gateway.DefaultCurrency(req.Currency))
		if err != nil {
			return gateway.Response{}, err
		}
		key := req.IdempotencyKey
		if key == "" {
			key = gateway.NewIdempotencyKey("stripe")
		}
		pi, err := a.api.CreatePaymentIntent(ctx, pkgstripe.PaymentIntentCreateParams{
			Amount:          money.ToMinorUnits(req.Amount, currency),
			Currency:        currency,
			PaymentMethodID: req.PaymentMethodID,
			CustomerID:      req.CustomerID,
			IdempotencyKey:  key,
			Metadata:        req.Metadata,
		})
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		return gateway.Response{
			Success:               true,
			PaymentID:             pi.ID,
			ExternalTransactionID: pi.ID,
			Status:                pi.Status,
			Amount:                &amount,
			Currency:              currency,
		}, nil
	})
}

func (a *Adapter) ConfirmPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeConfirm, func() (gateway.Response, error) {
		pi, err := a.api.ConfirmPaymentIntent(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return intentResponse(pi), nil
	})
}

func (a *Adapter) CancelPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeCancel, func() (gateway.Response, error) {
		pi, err := a.api.CancelPaymentIntent(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return gateway.Response{
			Success:               true,
			PaymentID:             pi.ID,
			ExternalTransactionID: pi.ID,
			Status:                "canceled",
		}, nil
	})
}

func (a *Adapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) gateway.Response {
	return gateway.Safely(CodeRefund, func() (gateway.Response, error) {
		var minor *int64
		if amount != nil {
			if err := gateway.ValidateAmount(*amount); err != nil {
				return gateway.Response{}, err
			}
			pi, err := a.api.GetPaymentIntent(ctx, externalID)
			if err != nil {
				return gateway.Response{}, err
			}
			units := money.ToMinorUnits(*amount, pi.Currency)
			minor = &units
		}
		r, err := a.api.CreateRefund(ctx, externalID, minor)
		if err != nil {
			return gateway.Response{}, err
		}
		refunded := money.FromMinorUnits(r.Amount, r.Currency)
		return gateway.Response{
			Success:               true,
			PaymentID:             r.ID,
			ExternalTransactionID: r.PaymentIntentID,
			Status:                "refunded",
			Amount:                &refunded,
			Currency:              r.Currency,
		}, nil
	})
}

func (a *Adapter) RetrievePayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeRetrieve, func() (gateway.Response, error) {
		pi, err := a.api.GetPaymentIntent(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return intentResponse(pi), nil
	})
}

func (a *Adapter) CreateSubscription(ctx context.Context, req gateway.SubscriptionRequest) gateway.Response {
	return gateway.Safely(CodeSubscription, func() (gateway.Response, error) {
		if err := gateway.ValidateAmount(req.Amount); err != nil {
			return gateway.Response{}, err
		}
		currency, err := gateway.ValidateCurrency(gateway.DefaultCurrency(req.Currency))
		if err != nil {
			return gateway.Response{}, err
		}
		count := req.IntervalCount
		if count <= 0 {
			count = 1
		}
		params := pkgstripe.SubscriptionCreateParams{
			CustomerID:      req.CustomerID,
			PaymentMethodID: req.PaymentMethodID,
			UnitAmount:      money.ToMinorUnits(req.Amount, currency),
			Currency:        currency,
			Interval:        req.Interval,
			IntervalCount:   int64(count),
			Description:     req.Description,
			IdempotencyKey:  req.IdempotencyKey,
			Metadata:        req.Metadata,
		}
		if req.TrialPeriodDays != nil {
			days := int64(*req.TrialPeriodDays)
			params.TrialPeriodDays = &days
		}
		sub, err := a.api.CreateSubscription(ctx, params)
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		details := subscriptionDetails(sub)
		details.Interval = req.Interval
		details.IntervalCount = &count
		return gateway.Response{
			Success:                true,
			ExternalSubscriptionID: sub.ID,
			Status:                 sub.Status,
			Amount:                 &amount,
			Currency:               currency,
			SubscriptionDetails:    details,
		}, nil
	})
}

func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) gateway.Response {
	return gateway.Safely(CodeCancelSubscription, func() (gateway.Response, error) {
		sub, err := a.api.CancelSubscription(ctx, subscriptionID, cancelAtPeriodEnd)
		if err != nil {
			return gateway.Response{}, err
		}
		return subscriptionResponse(sub), nil
	})
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, req gateway.SubscriptionUpdateRequest) gateway.Response {
	return gateway.Safely(CodeUpdateSubscription, func() (gateway.Response, error) {
		params := pkgstripe.SubscriptionUpdateParams{
			PaymentMethodID: req.PaymentMethodID,
			Metadata:        req.Metadata,
		}
		if req.Amount != nil {
			if err := gateway.ValidateAmount(*req.Amount); err != nil {
				return gateway.Response{}, err
			}
			params.Amount = req.Amount
		}
		sub, err := a.api.UpdateSubscription(ctx, subscriptionID, params)
		if err != nil {
			return gateway.Response{}, err
		}
		resp := subscriptionResponse(sub)
		resp.Amount = req.Amount
		return resp, nil
	})
}

func (a *Adapter) RetrieveSubscription(ctx context.Context, subscriptionID string) gateway.Response {
	return gateway.Safely(CodeRetrieveSubscription, func() (gateway.Response, error) {
		sub, err := a.api.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return gateway.Response{}, err
		}
		return subscriptionResponse(sub), nil
	})
}

func intentResponse(pi *pkgstripe.PaymentIntent) gateway.Response {
	amount := money.FromMinorUnits(pi.Amount, pi.Currency)
	return gateway.Response{
		Success:               true,
		PaymentID:             pi.ID,
		ExternalTransactionID: pi.ID,
		Status:                pi.Status,
		Amount:                &amount,
		Currency:              pi.Currency,
	}
}

func subscriptionResponse(sub *pkgstripe.Subscription) gateway.Response {
	return gateway.Response{
		Success:                true,
		ExternalSubscriptionID: sub.ID,
		Status:                 sub.Status,
		Currency:               sub.Currency,
		SubscriptionDetails:    subscriptionDetails(sub),
	}
}

func subscriptionDetails(sub *pkgstripe.Subscription) *gateway.SubscriptionDetails {
	details := &gateway.SubscriptionDetails{
		SubscriptionID:     sub.ID,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		Interval:           sub.Interval,
		TrialEnd:           sub.TrialEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.IntervalCount > 0 {
		count := int(sub.IntervalCount)
		details.IntervalCount = &count
	}
	return details
}
