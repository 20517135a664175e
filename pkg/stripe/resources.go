package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/refund"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/money"
)

// PaymentIntent is the subset of a Stripe payment intent the billing core reads.
type PaymentIntent struct {
	ID       string
	Status   string
	Amount   int64
	Currency string
}

type Refund struct {
	ID              string
	PaymentIntentID string
	Status          string
	Amount          int64
	Currency        string
}

// Subscription flattens the first subscription item into the period fields.
type Subscription struct {
	ID                 string
	Status             string
	ItemID             string
	Currency           string
	Interval           string
	IntervalCount      int64
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialEnd           *time.Time
	CancelAtPeriodEnd  bool
}

type PaymentIntentCreateParams struct {
	Amount          int64
	Currency        string
	PaymentMethodID string
	CustomerID      string
	IdempotencyKey  string
	Metadata        map[string]string
}

type SubscriptionCreateParams struct {
	CustomerID      string
	PaymentMethodID string
	UnitAmount      int64
	Currency        string
	Interval        string
	IntervalCount   int64
	TrialPeriodDays *int64
	Description     string
	IdempotencyKey  string
	Metadata        map[string]string
}

// SubscriptionUpdateParams reprices the first item when Amount is set.
type SubscriptionUpdateParams struct {
	Amount          *decimal.Decimal
	PaymentMethodID string
	Metadata        map[string]string
}

// paymentIntentParams requests automatic capture; confirming an intent
// settles it.
func paymentIntentParams(ctx context.Context, p PaymentIntentCreateParams) *stripe.PaymentIntentParams {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(p.Amount),
		Currency:      stripe.String(strings.ToLower(p.Currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	if id := strings.TrimSpace(p.PaymentMethodID); id != "" {
		params.PaymentMethod = stripe.String(id)
	}
	if id := strings.TrimSpace(p.CustomerID); id != "" {
		params.Customer = stripe.String(id)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if key := strings.TrimSpace(p.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	params.Context = ctx
	return params
}

func (c *Client) CreatePaymentIntent(ctx context.Context, p PaymentIntentCreateParams) (*PaymentIntent, error) {
	params := paymentIntentParams(ctx, p)
	c.log(ctx, "create_payment_intent", map[string]any{"amount": p.Amount, "currency": p.Currency})

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, mapStripeError(err, "create payment intent")
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) ConfirmPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	c.log(ctx, "confirm_payment_intent", map[string]any{"payment_intent_id": id})

	pi, err := paymentintent.Confirm(id, params)
	if err != nil {
		return nil, mapStripeError(err, "confirm payment intent")
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) CancelPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	c.log(ctx, "cancel_payment_intent", map[string]any{"payment_intent_id": id})

	pi, err := paymentintent.Cancel(id, params)
	if err != nil {
		return nil, mapStripeError(err, "cancel payment intent")
	}
	return toPaymentIntent(pi), nil
}

func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	c.log(ctx, "get_payment_intent", map[string]any{"payment_intent_id": id})

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err, "get payment intent")
	}
	return toPaymentIntent(pi), nil
}

// CreateRefund refunds a payment intent, fully when amount is nil.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string, amount *int64) (*Refund, error) {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	if amount != nil {
		params.Amount = stripe.Int64(*amount)
	}
	params.Context = ctx
	c.log(ctx, "create_refund", map[string]any{"payment_intent_id": paymentIntentID})

	r, err := refund.New(params)
	if err != nil {
		return nil, mapStripeError(err, "create refund")
	}
	out := &Refund{
		ID:              r.ID,
		PaymentIntentID: paymentIntentID,
		Status:          string(r.Status),
		Amount:          r.Amount,
		Currency:        strings.ToUpper(string(r.Currency)),
	}
	if r.PaymentIntent != nil && r.PaymentIntent.ID != "" {
		out.PaymentIntentID = r.PaymentIntent.ID
	}
	return out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, p SubscriptionCreateParams) (*Subscription, error) {
	if c.productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "stripe product id is required for subscriptions")
	}
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{{
			PriceData: &stripe.SubscriptionItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(p.Currency)),
				Product:    stripe.String(c.productID),
				UnitAmount: stripe.Int64(p.UnitAmount),
				Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
					Interval:      stripe.String(p.Interval),
					IntervalCount: stripe.Int64(p.IntervalCount),
				},
			},
		}},
	}
	if id := strings.TrimSpace(p.PaymentMethodID); id != "" {
		params.DefaultPaymentMethod = stripe.String(id)
	}
	if p.TrialPeriodDays != nil {
		params.TrialPeriodDays = stripe.Int64(*p.TrialPeriodDays)
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		params.Description = stripe.String(d)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if key := strings.TrimSpace(p.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	params.Context = ctx
	c.log(ctx, "create_subscription", map[string]any{"customer_id": p.CustomerID, "interval": p.Interval})

	sub, err := subscription.New(params)
	if err != nil {
		return nil, mapStripeError(err, "create subscription")
	}
	return toSubscription(sub), nil
}

// CancelSubscription cancels immediately, or flags the subscription to end
// with the current period when atPeriodEnd is set.
func (c *Client) CancelSubscription(ctx context.Context, id string, atPeriodEnd bool) (*Subscription, error) {
	c.log(ctx, "cancel_subscription", map[string]any{"subscription_id": id, "at_period_end": atPeriodEnd})
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		params.Context = ctx
		sub, err := subscription.Update(id, params)
		if err != nil {
			return nil, mapStripeError(err, "cancel subscription")
		}
		return toSubscription(sub), nil
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	sub, err := subscription.Cancel(id, params)
	if err != nil {
		return nil, mapStripeError(err, "cancel subscription")
	}
	return toSubscription(sub), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, p SubscriptionUpdateParams) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	if p.Amount != nil {
		current, err := c.GetSubscription(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.ItemID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stripe subscription has no items")
		}
		if c.productID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "stripe product id is required for subscriptions")
		}
		params.Items = []*stripe.SubscriptionItemsParams{{
			ID: stripe.String(current.ItemID),
			PriceData: &stripe.SubscriptionItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(current.Currency)),
				Product:    stripe.String(c.productID),
				UnitAmount: stripe.Int64(money.ToMinorUnits(*p.Amount, current.Currency)),
				Recurring: &stripe.SubscriptionItemPriceDataRecurringParams{
					Interval:      stripe.String(current.Interval),
					IntervalCount: stripe.Int64(current.IntervalCount),
				},
			},
		}}
	}
	if pm := strings.TrimSpace(p.PaymentMethodID); pm != "" {
		params.DefaultPaymentMethod = stripe.String(pm)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	c.log(ctx, "update_subscription", map[string]any{"subscription_id": id})

	sub, err := subscription.Update(id, params)
	if err != nil {
		return nil, mapStripeError(err, "update subscription")
	}
	return toSubscription(sub), nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	c.log(ctx, "get_subscription", map[string]any{"subscription_id": id})

	sub, err := subscription.Get(id, params)
	if err != nil {
		return nil, mapStripeError(err, "get subscription")
	}
	return toSubscription(sub), nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	if pi == nil {
		return &PaymentIntent{}
	}
	return &PaymentIntent{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
	}
}

func toSubscription(sub *stripe.Subscription) *Subscription {
	if sub == nil {
		return &Subscription{}
	}
	out := &Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		TrialEnd:          unixPtr(sub.TrialEnd),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		out.ItemID = item.ID
		out.CurrentPeriodStart = unixPtr(item.CurrentPeriodStart)
		out.CurrentPeriodEnd = unixPtr(item.CurrentPeriodEnd)
		if item.Price != nil {
			out.Currency = strings.ToUpper(string(item.Price.Currency))
			if item.Price.Recurring != nil {
				out.Interval = string(item.Price.Recurring.Interval)
				out.IntervalCount = item.Price.Recurring.IntervalCount
			}
		}
	}
	return out
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
