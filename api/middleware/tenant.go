package middleware

import (
	"net/http"

	"github.com/openbillingstore/billing-core/api/responses"
	"github.com/openbillingstore/billing-core/api/validators"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

// Tenant copies the X-Service-Id header into the request context and the log
// fields. A malformed or over-long id is rejected with 400; handlers that
// require a tenant check for it themselves.
func Tenant(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serviceID, err := validators.ServiceID(r.Header.Get(ServiceIDHeader))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if serviceID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithServiceID(r.Context(), serviceID)
			if logg != nil {
				ctx = logg.WithServiceID(ctx, serviceID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
