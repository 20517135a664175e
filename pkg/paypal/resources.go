package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      *Money `json:"amount,omitempty"`
	Payments    *PaymentCollection `json:"payments,omitempty"`
}

type PaymentCollection struct {
	Captures []Capture `json:"captures"`
}

// Order is a checkout order. Its id is what the billing core stores as the
// external transaction id.
type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Links         []Link         `json:"links"`
}

// Amount returns the first purchase unit amount.
func (o *Order) Amount() *Money {
	if o == nil || len(o.PurchaseUnits) == 0 {
		return nil
	}
	return o.PurchaseUnits[0].Amount
}

// FirstCapture returns the first capture recorded on the order, if any.
func (o *Order) FirstCapture() *Capture {
	if o == nil {
		return nil
	}
	for _, pu := range o.PurchaseUnits {
		if pu.Payments != nil && len(pu.Payments.Captures) > 0 {
			c := pu.Payments.Captures[0]
			return &c
		}
	}
	return nil
}

// ApproveURL returns the buyer approval link.
func (o *Order) ApproveURL() string {
	if o == nil {
		return ""
	}
	return findLink(o.Links, "approve", "payer-action")
}

type Refund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount *Money `json:"amount,omitempty"`
}

type BillingInfo struct {
	NextBillingTime *time.Time `json:"next_billing_time,omitempty"`
	LastPayment     *LastPayment `json:"last_payment,omitempty"`
}

type LastPayment struct {
	Amount *Money     `json:"amount,omitempty"`
	Time   *time.Time `json:"time,omitempty"`
}

type Subscription struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PlanID      string       `json:"plan_id"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	CustomID    string       `json:"custom_id,omitempty"`
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
	Links       []Link       `json:"links,omitempty"`
}

// ApproveURL returns the subscriber approval link.
func (s *Subscription) ApproveURL() string {
	if s == nil {
		return ""
	}
	return findLink(s.Links, "approve")
}

type OrderCreateParams struct {
	Amount    string
	Currency  string
	CustomID  string
	RequestID string
}

// PlanOverride reprices the configured plan for one subscription.
type PlanOverride struct {
	Amount        string
	Currency      string
	Interval      string
	IntervalCount int
	TrialDays     int
}

type SubscriptionCreateParams struct {
	CustomID  string
	Override  PlanOverride
	RequestID string
}

func (c *Client) CreateOrder(ctx context.Context, p OrderCreateParams) (*Order, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"custom_id": p.CustomID,
			"amount":    Money{CurrencyCode: strings.ToUpper(p.Currency), Value: p.Amount},
		}},
	}
	if c.returnURL != "" {
		body["application_context"] = map[string]string{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		}
	}
	var out Order
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &out, p.RequestID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodPost, path, map[string]any{}, &out, "capture-"+orderID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	path := fmt.Sprintf("/v2/checkout/orders/%s", url.PathEscape(orderID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundCapture refunds a capture, fully when amount is nil.
func (c *Client) RefundCapture(ctx context.Context, captureID string, amount *Money) (*Refund, error) {
	body := map[string]any{}
	if amount != nil {
		body["amount"] = amount
	}
	var out Refund
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", url.PathEscape(captureID))
	if err := c.do(ctx, http.MethodPost, path, body, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSubscription(ctx context.Context, p SubscriptionCreateParams) (*Subscription, error) {
	if c.planID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "paypal plan id is required for subscriptions")
	}
	body := map[string]any{
		"plan_id": c.planID,
		"plan":    planOverrideBody(p.Override),
	}
	if p.CustomID != "" {
		body["custom_id"] = p.CustomID
	}
	if c.returnURL != "" {
		body["application_context"] = map[string]string{
			"return_url": c.returnURL,
			"cancel_url": c.cancelURL,
		}
	}
	var out Subscription
	if err := c.do(ctx, http.MethodPost, "/v1/billing/subscriptions", body, &out, p.RequestID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelSubscription(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "cancelled by customer"
	}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s/cancel", url.PathEscape(id))
	return c.do(ctx, http.MethodPost, path, map[string]string{"reason": reason}, nil, "")
}

// ReviseSubscription changes the regular price of an active subscription.
func (c *Client) ReviseSubscription(ctx context.Context, id string, price Money) error {
	price.CurrencyCode = strings.ToUpper(price.CurrencyCode)
	body := map[string]any{
		"plan": map[string]any{
			"billing_cycles": []map[string]any{{
				"sequence":       1,
				"pricing_scheme": map[string]any{"fixed_price": price},
			}},
		},
	}
	if c.planID != "" {
		body["plan_id"] = c.planID
	}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s/revise", url.PathEscape(id))
	return c.do(ctx, http.MethodPost, path, body, nil, "")
}

// SetCustomID replaces the merchant reference on a subscription.
func (c *Client) SetCustomID(ctx context.Context, id, customID string) error {
	patch := []map[string]any{{"op": "replace", "path": "/custom_id", "value": customID}}
	path := fmt.Sprintf("/v1/billing/subscriptions/%s", url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, path, patch, nil, "")
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	var out Subscription
	path := fmt.Sprintf("/v1/billing/subscriptions/%s", url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func planOverrideBody(o PlanOverride) map[string]any {
	count := o.IntervalCount
	if count <= 0 {
		count = 1
	}
	cycles := []map[string]any{}
	sequence := 1
	if o.TrialDays > 0 {
		cycles = append(cycles, map[string]any{
			"sequence":       sequence,
			"tenure_type":    "TRIAL",
			"total_cycles":   1,
			"frequency":      map[string]any{"interval_unit": "DAY", "interval_count": o.TrialDays},
			"pricing_scheme": map[string]any{"fixed_price": Money{CurrencyCode: strings.ToUpper(o.Currency), Value: "0"}},
		})
		sequence++
	}
	cycles = append(cycles, map[string]any{
		"sequence":       sequence,
		"tenure_type":    "REGULAR",
		"total_cycles":   0,
		"frequency":      map[string]any{"interval_unit": strings.ToUpper(o.Interval), "interval_count": count},
		"pricing_scheme": map[string]any{"fixed_price": Money{CurrencyCode: strings.ToUpper(o.Currency), Value: o.Amount}},
	})
	return map[string]any{"billing_cycles": cycles}
}

func findLink(links []Link, rels ...string) string {
	for _, rel := range rels {
		for _, l := range links {
			if strings.EqualFold(l.Rel, rel) {
				return l.Href
			}
		}
	}
	return ""
}
