package square

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
)

const dateLayout = "2006-01-02"

// Payment is the slice of a Square payment the billing core reads.
type Payment struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

type Refund struct {
	ID        string
	PaymentID string
	Status    string
	Amount    int64
	Currency  string
}

type Subscription struct {
	ID                 string
	Status             string
	CardID             string
	StartDate          *time.Time
	ChargedThroughDate *time.Time
	CanceledDate       *time.Time
	PriceAmount        int64
	Currency           string
}

// SubscriptionUpdateParams reprices or re-cards a subscription. Amount is
// converted with the currency already on the subscription.
type SubscriptionUpdateParams struct {
	Amount *decimal.Decimal
	CardID string
}

func (c *Client) CreatePayment(ctx context.Context, params PaymentCreateParams) (*Payment, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("payment.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_payment", map[string]any{
		"location_id": params.LocationID,
		"customer_id": params.CustomerID,
		"amount":      params.AmountMinor,
	})

	resp, err := c.sdk.Payments.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment")
	}
	return c.paymentResult(ctx, "create_payment", resp.GetPayment()), nil
}

// CompletePayment captures a payment created with autocomplete off.
func (c *Client) CompletePayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.log(ctx, "request", "complete_payment", map[string]any{"payment_id": paymentID})
	resp, err := c.sdk.Payments.Complete(ctx, &sq.CompletePaymentRequest{PaymentID: paymentID})
	if err != nil {
		c.log(ctx, "error", "complete_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "complete payment")
	}
	return c.paymentResult(ctx, "complete_payment", resp.GetPayment()), nil
}

func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.log(ctx, "request", "cancel_payment", map[string]any{"payment_id": paymentID})
	resp, err := c.sdk.Payments.Cancel(ctx, &sq.CancelPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		c.log(ctx, "error", "cancel_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "cancel payment")
	}
	return c.paymentResult(ctx, "cancel_payment", resp.GetPayment()), nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.log(ctx, "request", "get_payment", map[string]any{"payment_id": paymentID})
	resp, err := c.sdk.Payments.Get(ctx, &sq.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		c.log(ctx, "error", "get_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get payment")
	}
	return c.paymentResult(ctx, "get_payment", resp.GetPayment()), nil
}

// RefundPayment refunds amount minor units of the payment's currency.
// Square requires an explicit amount even for full refunds.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount int64, currency, idempotencyKey string) (*Refund, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "square refund amount must be positive")
	}
	req := &sq.RefundPaymentRequest{
		IdempotencyKey: c.ensureIdempotencyKey("refund.create", idempotencyKey),
		PaymentID:      ptrString(paymentID),
		AmountMoney:    moneyPtr(amount, currency),
	}
	c.log(ctx, "request", "refund_payment", map[string]any{"payment_id": paymentID, "amount": amount})

	resp, err := c.sdk.Refunds.RefundPayment(ctx, req)
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "refund payment")
	}
	r := resp.GetRefund()
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square refund response was empty")
	}
	refunded, code := fromMoney(r.GetAmountMoney())
	out := &Refund{
		ID:        r.ID,
		PaymentID: stringValue(r.GetPaymentID()),
		Status:    stringValue(r.GetStatus()),
		Amount:    refunded,
		Currency:  code,
	}
	c.log(ctx, "response", "refund_payment", map[string]any{"refund_id": out.ID, "status": out.Status})
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, params SubscriptionCreateParams) (*Subscription, error) {
	if params.LocationID == "" {
		params.LocationID = c.locationID
	}
	if params.PlanVariationID == "" {
		params.PlanVariationID = c.planVariationID
	}
	if params.PlanVariationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "square plan variation id is required for subscriptions")
	}
	req := params.toSquareRequest(c.ensureIdempotencyKey("subscription.create", params.IdempotencyKey))
	c.log(ctx, "request", "create_subscription", map[string]any{
		"location_id":       params.LocationID,
		"plan_variation_id": params.PlanVariationID,
		"customer_id":       params.CustomerID,
		"card_id":           params.CardID,
	})

	resp, err := c.sdk.Subscriptions.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_subscription", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create subscription")
	}
	return c.subscriptionResult(ctx, "create_subscription", resp.GetSubscription()), nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	c.log(ctx, "request", "cancel_subscription", map[string]any{"subscription_id": subscriptionID})
	resp, err := c.sdk.Subscriptions.Cancel(ctx, &sq.CancelSubscriptionsRequest{SubscriptionID: subscriptionID})
	if err != nil {
		c.log(ctx, "error", "cancel_subscription", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "cancel subscription")
	}
	return c.subscriptionResult(ctx, "cancel_subscription", resp.GetSubscription()), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, params SubscriptionUpdateParams) (*Subscription, error) {
	patch := &sq.Subscription{}
	if trimmed := strings.TrimSpace(params.CardID); trimmed != "" {
		patch.CardID = ptrString(trimmed)
	}
	if params.Amount != nil {
		current, err := c.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		code := current.Currency
		if code == "" {
			code = "USD"
		}
		patch.PriceOverrideMoney = moneyPtr(money.ToMinorUnits(*params.Amount, code), code)
	}
	c.log(ctx, "request", "update_subscription", map[string]any{"subscription_id": subscriptionID, "card_id": params.CardID})

	resp, err := c.sdk.Subscriptions.Update(ctx, &sq.UpdateSubscriptionRequest{
		SubscriptionID: subscriptionID,
		Subscription:   patch,
	})
	if err != nil {
		c.log(ctx, "error", "update_subscription", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "update subscription")
	}
	return c.subscriptionResult(ctx, "update_subscription", resp.GetSubscription()), nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	c.log(ctx, "request", "get_subscription", map[string]any{"subscription_id": subscriptionID})
	resp, err := c.sdk.Subscriptions.Get(ctx, &sq.GetSubscriptionsRequest{SubscriptionID: subscriptionID})
	if err != nil {
		c.log(ctx, "error", "get_subscription", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get subscription")
	}
	return c.subscriptionResult(ctx, "get_subscription", resp.GetSubscription()), nil
}

func (c *Client) paymentResult(ctx context.Context, op string, p *sq.Payment) *Payment {
	out := toPayment(p)
	c.log(ctx, "response", op, map[string]any{"payment_id": out.ID, "status": out.Status})
	return out
}

func (c *Client) subscriptionResult(ctx context.Context, op string, s *sq.Subscription) *Subscription {
	out := toSubscription(s)
	c.log(ctx, "response", op, map[string]any{"subscription_id": out.ID, "status": out.Status})
	return out
}

func toPayment(p *sq.Payment) *Payment {
	if p == nil {
		return &Payment{}
	}
	amount, code := fromMoney(p.GetTotalMoney())
	if amount == 0 {
		amount, code = fromMoney(p.GetAmountMoney())
	}
	return &Payment{
		ID:       stringValue(p.GetID()),
		Status:   stringValue(p.GetStatus()),
		Amount:   amount,
		Currency: code,
	}
}

func toSubscription(s *sq.Subscription) *Subscription {
	if s == nil {
		return &Subscription{}
	}
	amount, code := fromMoney(s.GetPriceOverrideMoney())
	return &Subscription{
		ID:                 stringValue(s.GetID()),
		Status:             subscriptionStatusString(s.GetStatus()),
		CardID:             stringValue(s.GetCardID()),
		StartDate:          parseDate(s.GetStartDate()),
		ChargedThroughDate: parseDate(s.GetChargedThroughDate()),
		CanceledDate:       parseDate(s.GetCanceledDate()),
		PriceAmount:        amount,
		Currency:           code,
	}
}

func parseDate(raw *string) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil
	}
	return &t
}

// FormatDate renders t the way Square expects subscription dates.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
