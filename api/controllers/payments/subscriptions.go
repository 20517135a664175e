package payments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/api/responses"
	"github.com/openbillingstore/billing-core/api/validators"
	internalpayments "github.com/openbillingstore/billing-core/internal/payments"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

type cancelSubscriptionRequest struct {
	CancelAtPeriodEnd *bool  `json:"cancelAtPeriodEnd,omitempty"`
	Reason            string `json:"reason" validate:"max=255"`
}

type updateSubscriptionRequest struct {
	Amount          *decimal.Decimal  `json:"amount,omitempty" validate:"omitempty,positive_amount"`
	PaymentMethodID string            `json:"paymentMethodId" validate:"max=255"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CancelSubscription defaults to cancelling at the end of the current period.
func CancelSubscription(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		subscriptionID, err := validators.PathParam(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelSubscriptionRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		atPeriodEnd := true
		if payload.CancelAtPeriodEnd != nil {
			atPeriodEnd = *payload.CancelAtPeriodEnd
		}

		writeResult(w, http.StatusOK, svc.CancelSubscription(r.Context(), internalpayments.CancelSubscriptionInput{
			SubscriptionID:    subscriptionID,
			CancelAtPeriodEnd: atPeriodEnd,
			Reason:            payload.Reason,
		}))
	}
}

func UpdateSubscription(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		subscriptionID, err := validators.PathParam(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		writeResult(w, http.StatusOK, svc.UpdateSubscription(r.Context(), internalpayments.UpdateSubscriptionInput{
			SubscriptionID:  subscriptionID,
			Amount:          payload.Amount,
			PaymentMethodID: payload.PaymentMethodID,
			Metadata:        payload.Metadata,
		}))
	}
}

func RetrieveSubscription(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		subscriptionID, err := validators.PathParam(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res := svc.RetrieveSubscription(r.Context(), subscriptionID)
		if res.Success {
			responses.WriteSuccess(w, res)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusNotFound, res)
	}
}

func SubscriptionPayments(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		subscriptionID, err := validators.PathParam(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.SubscriptionPayments(r.Context(), subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"payments": rows})
	}
}
