package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/api/middleware"
	"github.com/openbillingstore/billing-core/api/responses"
	"github.com/openbillingstore/billing-core/api/validators"
	internalpayments "github.com/openbillingstore/billing-core/internal/payments"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

type planRequest struct {
	Interval        string `json:"interval" validate:"required,oneof=day week month year DAILY WEEKLY MONTHLY QUARTERLY YEARLY"`
	IntervalCount   int    `json:"intervalCount" validate:"omitempty,min=1,max=12"`
	TrialPeriodDays *int   `json:"trialPeriodDays,omitempty" validate:"omitempty,min=0,max=730"`
	Description     string `json:"description" validate:"max=255"`
}

// toInput accepts either a provider unit (month) or a catalog interval
// (QUARTERLY), which is expanded into unit and count.
func (p *planRequest) toInput() *internalpayments.SubscriptionPlanInput {
	interval, count := p.Interval, p.IntervalCount
	if billing, err := enums.ParseBillingInterval(p.Interval); err == nil {
		unit, multiple := billing.GatewayInterval()
		interval = unit
		if count <= 0 {
			count = 1
		}
		count *= multiple
	}
	return &internalpayments.SubscriptionPlanInput{
		Interval:        interval,
		IntervalCount:   count,
		TrialPeriodDays: p.TrialPeriodDays,
		Description:     p.Description,
	}
}

type payRequest struct {
	UserID          string            `json:"userId" validate:"required,max=255"`
	Amount          decimal.Decimal   `json:"amount" validate:"positive_amount"`
	Currency        string            `json:"currency" validate:"omitempty,iso4217"`
	Gateway         string            `json:"gateway" validate:"required,max=32"`
	PaymentType     string            `json:"paymentType" validate:"omitempty,oneof=ONE_TIME RECURRING"`
	PaymentMethodID string            `json:"paymentMethodId" validate:"max=255"`
	OrderID         string            `json:"orderId" validate:"max=64"`
	SubscriptionID  string            `json:"subscriptionId" validate:"max=255"`
	IdempotencyKey  string            `json:"idempotencyKey" validate:"max=255"`
	Subscription    *planRequest      `json:"subscription,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type refundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,positive_amount"`
	Reason string           `json:"reason" validate:"max=255"`
}

// Pay charges a user once or opens a recurring agreement.
func Pay(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload payRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		key := middleware.IdempotencyKeyFromContext(r.Context())
		if key == "" {
			key = strings.TrimSpace(payload.IdempotencyKey)
		}
		input := internalpayments.CreatePaymentInput{
			UserID:          payload.UserID,
			ServiceID:       middleware.ServiceIDFromContext(r.Context()),
			Amount:          payload.Amount,
			Currency:        payload.Currency,
			Gateway:         payload.Gateway,
			PaymentType:     payload.PaymentType,
			PaymentMethodID: payload.PaymentMethodID,
			OrderID:         payload.OrderID,
			SubscriptionID:  payload.SubscriptionID,
			IdempotencyKey:  key,
			Metadata:        payload.Metadata,
		}
		if plan := payload.Subscription; plan != nil {
			input.Plan = plan.toInput()
		}

		writeResult(w, http.StatusCreated, svc.CreatePayment(r.Context(), input))
	}
}

func Confirm(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentAction(svc, logg, func(r *http.Request, paymentID string) internalpayments.Result {
		return svc.ConfirmPayment(r.Context(), paymentID)
	})
}

func Cancel(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return paymentAction(svc, logg, func(r *http.Request, paymentID string) internalpayments.Result {
		return svc.CancelPayment(r.Context(), paymentID)
	})
}

// Refund returns a full refund when the body carries no amount.
func Refund(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		paymentID, err := validators.PathParam(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeResult(w, http.StatusOK, svc.RefundPayment(r.Context(), internalpayments.RefundInput{
			PaymentID: paymentID,
			Amount:    payload.Amount,
			Reason:    payload.Reason,
		}))
	}
}

// Retrieve returns the locally stored payment without contacting its
// provider; misses answer 404. Reconciliation refreshes unsettled rows.
func Retrieve(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		paymentID, err := validators.PathParam(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res := svc.RetrievePayment(r.Context(), paymentID)
		if res.Success {
			responses.WriteSuccess(w, res)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusNotFound, res)
	}
}

func ListByUser(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := validators.PathParam(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListByStatus rejects unknown status names with 400.
func ListByStatus(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		status, err := validators.PathParam(chi.URLParam(r, "status"), "status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByStatus(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func Gateways(svc internalpayments.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"gateways": svc.Gateways()})
	}
}

func Types() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"types": internalpayments.PaymentTypes()})
	}
}

func paymentAction(svc internalpayments.Service, logg *logger.Logger, call func(*http.Request, string) internalpayments.Result) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		paymentID, err := validators.PathParam(chi.URLParam(r, "paymentId"), "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeResult(w, http.StatusOK, call(r, paymentID))
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// writeResult derives the HTTP status from the orchestrator outcome.
func writeResult(w http.ResponseWriter, okStatus int, res internalpayments.Result) {
	switch {
	case res.Success:
		responses.WriteSuccessStatus(w, okStatus, res)
	case res.Status == internalpayments.StatusNotFound:
		responses.WriteSuccessStatus(w, http.StatusNotFound, res)
	default:
		responses.WriteSuccessStatus(w, http.StatusBadRequest, res)
	}
}
