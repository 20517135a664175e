// Package square adapts Square payments, refunds and subscriptions to the
// gateway contract.
package square

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
	pkgsquare "github.com/openbillingstore/billing-core/pkg/square"
)

const (
	CodeCreate               = "SQUARE_ERROR"
	CodeConfirm              = "SQUARE_CONFIRM_ERROR"
	CodeCancel               = "SQUARE_CANCEL_ERROR"
	CodeRefund               = "SQUARE_REFUND_ERROR"
	CodeRetrieve             = "SQUARE_RETRIEVE_ERROR"
	CodeSubscription         = "SQUARE_SUBSCRIPTION_ERROR"
	CodeCancelSubscription   = "SQUARE_CANCEL_SUBSCRIPTION_ERROR"
	CodeUpdateSubscription   = "SQUARE_UPDATE_SUBSCRIPTION_ERROR"
	CodeRetrieveSubscription = "SQUARE_RETRIEVE_SUBSCRIPTION_ERROR"
)

// API is the subset of pkg/square the adapter calls.
type API interface {
	CreatePayment(ctx context.Context, p pkgsquare.PaymentCreateParams) (*pkgsquare.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*pkgsquare.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*pkgsquare.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*pkgsquare.Payment, error)
	RefundPayment(ctx context.Context, paymentID string, amount int64, currency, idempotencyKey string) (*pkgsquare.Refund, error)
	CreateSubscription(ctx context.Context, p pkgsquare.SubscriptionCreateParams) (*pkgsquare.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*pkgsquare.Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, p pkgsquare.SubscriptionUpdateParams) (*pkgsquare.Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*pkgsquare.Subscription, error)
}

type Adapter struct {
	api API
	now func() time.Time
}

func New(api API) *Adapter {
	return &Adapter{api: api, now: time.Now}
}

func (a *Adapter) Name() enums.PaymentProvider { return enums.PaymentProviderSquare }

func (a *Adapter) CreatePayment(ctx context.Context, req gateway.PaymentRequest) gateway.Response {
	return gateway.Safely(CodeCreate, func() (gateway.Response, error) {
		if err := gateway.ValidateAmount(req.Amount); err != nil {
			return gateway.Response{}, err
		}
		currency, err := gateway.ValidateCurrency(gateway.DefaultCurrency(req.Currency))
		if err != nil {
			return gateway.Response{}, err
		}
		if strings.TrimSpace(req.PaymentMethodID) == "" {
			return gateway.Response{}, pkgerrors.New(pkgerrors.CodeValidation, "square payments require a payment method source id")
		}
		key := req.IdempotencyKey
		if key == "" {
			key = gateway.NewIdempotencyKey("square")
		}
		p, err := a.api.CreatePayment(ctx, pkgsquare.PaymentCreateParams{
			AmountMinor:    money.ToMinorUnits(req.Amount, currency),
			Currency:       currency,
			CustomerID:     req.CustomerID,
			SourceID:       req.PaymentMethodID,
			IdempotencyKey: key,
			ReferenceID:    req.Metadata["orderId"],
			Note:           req.Metadata["description"],
		})
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		return gateway.Response{
			Success:               true,
			PaymentID:             p.ID,
			ExternalTransactionID: p.ID,
			Status:                p.Status,
			Amount:                &amount,
			Currency:              currency,
		}, nil
	})
}

// ConfirmPayment completes a payment that was created with autocomplete off.
func (a *Adapter) ConfirmPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeConfirm, func() (gateway.Response, error) {
		p, err := a.api.CompletePayment(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return paymentResponse(p), nil
	})
}

func (a *Adapter) CancelPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeCancel, func() (gateway.Response, error) {
		p, err := a.api.CancelPayment(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		resp := paymentResponse(p)
		resp.Status = "canceled"
		return resp, nil
	})
}

func (a *Adapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) gateway.Response {
	return gateway.Safely(CodeRefund, func() (gateway.Response, error) {
		p, err := a.api.GetPayment(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		minor := p.Amount
		if amount != nil {
			if err := gateway.ValidateAmount(*amount); err != nil {
				return gateway.Response{}, err
			}
			minor = money.ToMinorUnits(*amount, p.Currency)
		}
		r, err := a.api.RefundPayment(ctx, externalID, minor, p.Currency, gateway.NewIdempotencyKey("square-refund"))
		if err != nil {
			return gateway.Response{}, err
		}
		refunded := money.FromMinorUnits(r.Amount, r.Currency)
		return gateway.Response{
			Success:               true,
			PaymentID:             r.ID,
			ExternalTransactionID: externalID,
			Status:                "refunded",
			Amount:                &refunded,
			Currency:              r.Currency,
		}, nil
	})
}

func (a *Adapter) RetrievePayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeRetrieve, func() (gateway.Response, error) {
		p, err := a.api.GetPayment(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return paymentResponse(p), nil
	})
}

// CreateSubscription starts a subscription on the configured plan variation
// with the requested price as an override. A trial delays the start date.
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
		params := pkgsquare.SubscriptionCreateParams{
			CustomerID:            req.CustomerID,
			CardID:                req.PaymentMethodID,
			IdempotencyKey:        req.IdempotencyKey,
			PriceOverrideAmount:   money.ToMinorUnits(req.Amount, currency),
			PriceOverrideCurrency: currency,
		}
		var trialEnd *time.Time
		if req.TrialPeriodDays != nil && *req.TrialPeriodDays > 0 {
			start := a.now().UTC().AddDate(0, 0, *req.TrialPeriodDays)
			params.StartDate = pkgsquare.FormatDate(start)
			trialEnd = &start
		}
		sub, err := a.api.CreateSubscription(ctx, params)
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		resp := subscriptionResponse(sub)
		resp.Amount = &amount
		resp.Currency = currency
		resp.SubscriptionDetails.Interval = req.Interval
		resp.SubscriptionDetails.IntervalCount = &count
		resp.SubscriptionDetails.TrialEnd = trialEnd
		return resp, nil
	})
}

// CancelSubscription cancels immediately regardless of cancelAtPeriodEnd.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, _ bool) gateway.Response {
	return gateway.Safely(CodeCancelSubscription, func() (gateway.Response, error) {
		sub, err := a.api.CancelSubscription(ctx, subscriptionID)
		if err != nil {
			return gateway.Response{}, err
		}
		resp := subscriptionResponse(sub)
		resp.Status = "cancelled"
		resp.SubscriptionDetails.Status = "cancelled"
		return resp, nil
	})
}

func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, req gateway.SubscriptionUpdateRequest) gateway.Response {
	return gateway.Safely(CodeUpdateSubscription, func() (gateway.Response, error) {
		if req.Amount != nil {
			if err := gateway.ValidateAmount(*req.Amount); err != nil {
				return gateway.Response{}, err
			}
		}
		sub, err := a.api.UpdateSubscription(ctx, subscriptionID, pkgsquare.SubscriptionUpdateParams{
			Amount: req.Amount,
			CardID: req.PaymentMethodID,
		})
		if err != nil {
			return gateway.Response{}, err
		}
		return subscriptionResponse(sub), nil
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

func paymentResponse(p *pkgsquare.Payment) gateway.Response {
	resp := gateway.Response{
		Success:               true,
		PaymentID:             p.ID,
		ExternalTransactionID: p.ID,
		Status:                p.Status,
		Currency:              p.Currency,
	}
	if p.Currency != "" {
		amount := money.FromMinorUnits(p.Amount, p.Currency)
		resp.Amount = &amount
	}
	return resp
}

func subscriptionResponse(sub *pkgsquare.Subscription) gateway.Response {
	status := strings.ToLower(sub.Status)
	resp := gateway.Response{
		Success:                true,
		ExternalSubscriptionID: sub.ID,
		Status:                 status,
		Currency:               sub.Currency,
		SubscriptionDetails: &gateway.SubscriptionDetails{
			SubscriptionID:     sub.ID,
			Status:             status,
			CurrentPeriodStart: sub.StartDate,
			CurrentPeriodEnd:   sub.ChargedThroughDate,
		},
	}
	if sub.PriceAmount > 0 && sub.Currency != "" {
		amount := money.FromMinorUnits(sub.PriceAmount, sub.Currency)
		resp.Amount = &amount
	}
	return resp
}
