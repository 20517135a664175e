package orders

import (
	"net/http"

	"github.com/openbillingstore/billing-core/api/middleware"
	"github.com/openbillingstore/billing-core/api/responses"
	"github.com/openbillingstore/billing-core/api/validators"
	internalorders "github.com/openbillingstore/billing-core/internal/orders"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

type initOrderRequest struct {
	ProductID   string `json:"productId" validate:"required,max=10"`
	UserID      string `json:"userId" validate:"required,max=255"`
	CountryCode string `json:"countryCode" validate:"omitempty,len=2"`
}

// Init prices a product for a tenant user and stores the PENDING order.
func Init(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		serviceID := middleware.ServiceIDFromContext(r.Context())
		if serviceID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, middleware.ServiceIDHeader+" header is required"))
			return
		}

		var payload initOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitOrder(r.Context(), internalorders.InitOrderInput{
			ServiceID:   serviceID,
			ProductID:   payload.ProductID,
			UserID:      payload.UserID,
			CountryCode: payload.CountryCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
