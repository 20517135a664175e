// Package paypal adapts PayPal checkout orders and billing subscriptions to
// the gateway contract.
package paypal

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
	pkgpaypal "github.com/openbillingstore/billing-core/pkg/paypal"
)

const (
	CodeCreate               = "PAYPAL_ERROR"
	CodeConfirm              = "PAYPAL_CAPTURE_ERROR"
	CodeCancel               = "PAYPAL_CANCEL_ERROR"
	CodeRefund               = "PAYPAL_REFUND_ERROR"
	CodeRetrieve             = "PAYPAL_RETRIEVE_ERROR"
	CodeSubscription         = "PAYPAL_SUBSCRIPTION_ERROR"
	CodeCancelSubscription   = "PAYPAL_CANCEL_SUBSCRIPTION_ERROR"
	CodeUpdateSubscription   = "PAYPAL_UPDATE_SUBSCRIPTION_ERROR"
	CodeRetrieveSubscription = "PAYPAL_RETRIEVE_SUBSCRIPTION_ERROR"

	MetadataApproveURL = "approveUrl"
	MetadataCustomID   = "customId"
)

// API is the subset of pkg/paypal the adapter calls.
type API interface {
	CreateOrder(ctx context.Context, p pkgpaypal.OrderCreateParams) (*pkgpaypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*pkgpaypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*pkgpaypal.Order, error)
	RefundCapture(ctx context.Context, captureID string, amount *pkgpaypal.Money) (*pkgpaypal.Refund, error)
	CreateSubscription(ctx context.Context, p pkgpaypal.SubscriptionCreateParams) (*pkgpaypal.Subscription, error)
	CancelSubscription(ctx context.Context, id, reason string) error
	ReviseSubscription(ctx context.Context, id string, price pkgpaypal.Money) error
	SetCustomID(ctx context.Context, id, customID string) error
	GetSubscription(ctx context.Context, id string) (*pkgpaypal.Subscription, error)
}

type Adapter struct {
	api API
}

func New(api API) *Adapter {
	return &Adapter{api: api}
}

func (a *Adapter) Name() enums.PaymentProvider { return enums.PaymentProviderPayPal }

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
			key = gateway.NewIdempotencyKey("paypal")
		}
		order, err := a.api.CreateOrder(ctx, pkgpaypal.OrderCreateParams{
			Amount:    money.String(req.Amount, currency),
			Currency:  currency,
			CustomID:  customID(req.Metadata, req.CustomerID),
			RequestID: key,
		})
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		resp := gateway.Response{
			Success:               true,
			PaymentID:             order.ID,
			ExternalTransactionID: order.ID,
			Status:                normalizeStatus(order.Status),
			Amount:                &amount,
			Currency:              currency,
		}
		if link := order.ApproveURL(); link != "" {
			resp.Metadata = map[string]any{MetadataApproveURL: link}
		}
		return resp, nil
	})
}

// ConfirmPayment captures an approved order.
func (a *Adapter) ConfirmPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeConfirm, func() (gateway.Response, error) {
		order, err := a.api.CaptureOrder(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return orderResponse(order), nil
	})
}

// CancelPayment abandons an uncaptured order. PayPal has no void call for
// orders; an order that was never captured simply expires.
func (a *Adapter) CancelPayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeCancel, func() (gateway.Response, error) {
		order, err := a.api.GetOrder(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		if strings.EqualFold(order.Status, "COMPLETED") {
			return gateway.Response{}, pkgerrors.New(pkgerrors.CodeStateConflict, "paypal order "+order.ID+" is already captured")
		}
		return gateway.Response{
			Success:               true,
			PaymentID:             order.ID,
			ExternalTransactionID: order.ID,
			Status:                "cancelled",
		}, nil
	})
}

func (a *Adapter) RefundPayment(ctx context.Context, externalID string, amount *decimal.Decimal) gateway.Response {
	return gateway.Safely(CodeRefund, func() (gateway.Response, error) {
		order, err := a.api.GetOrder(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		capture := order.FirstCapture()
		if capture == nil {
			return gateway.Response{}, pkgerrors.New(pkgerrors.CodeStateConflict, "paypal order "+order.ID+" has no capture to refund")
		}

		var partial *pkgpaypal.Money
		if amount != nil {
			if err := gateway.ValidateAmount(*amount); err != nil {
				return gateway.Response{}, err
			}
			currency := "USD"
			if capture.Amount != nil && capture.Amount.CurrencyCode != "" {
				currency = capture.Amount.CurrencyCode
			}
			partial = &pkgpaypal.Money{CurrencyCode: currency, Value: money.String(*amount, currency)}
		}

		refund, err := a.api.RefundCapture(ctx, capture.ID, partial)
		if err != nil {
			return gateway.Response{}, err
		}
		resp := gateway.Response{
			Success:               true,
			PaymentID:             refund.ID,
			ExternalTransactionID: order.ID,
			Status:                "refunded",
		}
		applyMoney(&resp, refund.Amount)
		return resp, nil
	})
}

func (a *Adapter) RetrievePayment(ctx context.Context, externalID string) gateway.Response {
	return gateway.Safely(CodeRetrieve, func() (gateway.Response, error) {
		order, err := a.api.GetOrder(ctx, externalID)
		if err != nil {
			return gateway.Response{}, err
		}
		return orderResponse(order), nil
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
		override := pkgpaypal.PlanOverride{
			Amount:        money.String(req.Amount, currency),
			Currency:      currency,
			Interval:      req.Interval,
			IntervalCount: count,
		}
		if req.TrialPeriodDays != nil {
			override.TrialDays = *req.TrialPeriodDays
		}
		sub, err := a.api.CreateSubscription(ctx, pkgpaypal.SubscriptionCreateParams{
			CustomID:  customID(req.Metadata, req.CustomerID),
			Override:  override,
			RequestID: req.IdempotencyKey,
		})
		if err != nil {
			return gateway.Response{}, err
		}
		amount := money.Round(req.Amount, currency)
		resp := subscriptionResponse(sub)
		resp.Amount = &amount
		resp.Currency = currency
		resp.SubscriptionDetails.Interval = req.Interval
		resp.SubscriptionDetails.IntervalCount = &count
		if link := sub.ApproveURL(); link != "" {
			resp.Metadata = map[string]any{MetadataApproveURL: link}
		}
		return resp, nil
	})
}

// CancelSubscription always cancels immediately; PayPal has no
// end-of-period cancellation.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, _ bool) gateway.Response {
	return gateway.Safely(CodeCancelSubscription, func() (gateway.Response, error) {
		if err := a.api.CancelSubscription(ctx, subscriptionID, ""); err != nil {
			return gateway.Response{}, err
		}
		return gateway.Response{
			Success:                true,
			ExternalSubscriptionID: subscriptionID,
			Status:                 "cancelled",
			SubscriptionDetails: &gateway.SubscriptionDetails{
				SubscriptionID: subscriptionID,
				Status:         "cancelled",
			},
		}, nil
	})
}

// UpdateSubscription revises the price and replaces the custom id. PayPal
// subscriptions carry no stored payment method, so PaymentMethodID is ignored.
func (a *Adapter) UpdateSubscription(ctx context.Context, subscriptionID string, req gateway.SubscriptionUpdateRequest) gateway.Response {
	return gateway.Safely(CodeUpdateSubscription, func() (gateway.Response, error) {
		current, err := a.api.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return gateway.Response{}, err
		}
		if req.Amount != nil {
			if err := gateway.ValidateAmount(*req.Amount); err != nil {
				return gateway.Response{}, err
			}
			currency := subscriptionCurrency(current)
			price := pkgpaypal.Money{CurrencyCode: currency, Value: money.String(*req.Amount, currency)}
			if err := a.api.ReviseSubscription(ctx, subscriptionID, price); err != nil {
				return gateway.Response{}, err
			}
		}
		if id := strings.TrimSpace(req.Metadata[MetadataCustomID]); id != "" {
			if err := a.api.SetCustomID(ctx, subscriptionID, id); err != nil {
				return gateway.Response{}, err
			}
		}
		resp := subscriptionResponse(current)
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

func orderResponse(order *pkgpaypal.Order) gateway.Response {
	resp := gateway.Response{
		Success:               true,
		PaymentID:             order.ID,
		ExternalTransactionID: order.ID,
		Status:                normalizeStatus(order.Status),
	}
	if capture := order.FirstCapture(); capture != nil && capture.Amount != nil {
		applyMoney(&resp, capture.Amount)
	} else {
		applyMoney(&resp, order.Amount())
	}
	return resp
}

func subscriptionResponse(sub *pkgpaypal.Subscription) gateway.Response {
	status := normalizeStatus(sub.Status)
	details := &gateway.SubscriptionDetails{
		SubscriptionID:     sub.ID,
		Status:             status,
		CurrentPeriodStart: sub.StartTime,
	}
	if sub.BillingInfo != nil {
		details.CurrentPeriodEnd = sub.BillingInfo.NextBillingTime
	}
	resp := gateway.Response{
		Success:                true,
		ExternalSubscriptionID: sub.ID,
		Status:                 status,
		SubscriptionDetails:    details,
	}
	if sub.BillingInfo != nil && sub.BillingInfo.LastPayment != nil {
		applyMoney(&resp, sub.BillingInfo.LastPayment.Amount)
	}
	return resp
}

func applyMoney(resp *gateway.Response, m *pkgpaypal.Money) {
	if m == nil {
		return
	}
	value, err := decimal.NewFromString(m.Value)
	if err != nil {
		return
	}
	resp.Amount = &value
	resp.Currency = strings.ToUpper(m.CurrencyCode)
}

func subscriptionCurrency(sub *pkgpaypal.Subscription) string {
	if sub != nil && sub.BillingInfo != nil && sub.BillingInfo.LastPayment != nil && sub.BillingInfo.LastPayment.Amount != nil {
		return strings.ToUpper(sub.BillingInfo.LastPayment.Amount.CurrencyCode)
	}
	return gateway.DefaultCurrency("")
}

func customID(metadata map[string]string, fallback string) string {
	if id := strings.TrimSpace(metadata[MetadataCustomID]); id != "" {
		return id
	}
	return fallback
}

func normalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "voided", "expired":
		return "cancelled"
	case "declined", "denied":
		return "failed"
	default:
		return s
	}
}
