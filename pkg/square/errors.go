package square

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

var statusCodes = map[int]pkgerrors.Code{
	http.StatusBadRequest:          pkgerrors.CodeValidation,
	http.StatusUnauthorized:        pkgerrors.CodeUnauthorized,
	http.StatusPaymentRequired:     pkgerrors.CodeGateway,
	http.StatusForbidden:           pkgerrors.CodeForbidden,
	http.StatusNotFound:            pkgerrors.CodeNotFound,
	http.StatusConflict:            pkgerrors.CodeConflict,
	http.StatusUnprocessableEntity: pkgerrors.CodeStateConflict,
	http.StatusTooManyRequests:     pkgerrors.CodeRateLimit,
}

func domainCodeForStatus(status int) pkgerrors.Code {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= 400 && status < 500 {
		return pkgerrors.CodeValidation
	}
	return pkgerrors.CodeDependency
}

// codeForSquareError lets the first recognised error body entry override the
// HTTP status mapping.
func codeForSquareError(e *sq.Error) (pkgerrors.Code, bool) {
	switch {
	case e == nil:
		return "", false
	case e.Code == sq.ErrorCodeIdempotencyKeyReused:
		return pkgerrors.CodeIdempotency, true
	case e.Category == sq.ErrorCategoryAuthenticationError:
		return pkgerrors.CodeUnauthorized, true
	case e.Category == sq.ErrorCategoryPaymentMethodError:
		return pkgerrors.CodeGateway, true
	}
	return "", false
}

func (c *Client) mapSquareError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := "square " + op + " failed"
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
	code := domainCodeForStatus(apiErr.StatusCode)
	for _, e := range decodeSquareErrors(apiErr) {
		if override, ok := codeForSquareError(e); ok {
			code = override
			break
		}
	}
	return pkgerrors.Wrap(code, err, msg)
}

// decodeSquareErrors reads the {"errors":[...]} body the SDK keeps as the
// wrapped cause of an APIError.
func decodeSquareErrors(apiErr *sqcore.APIError) []*sq.Error {
	if apiErr == nil || apiErr.Unwrap() == nil {
		return nil
	}
	raw := strings.TrimSpace(apiErr.Unwrap().Error())
	if raw == "" {
		return nil
	}
	var body struct {
		Errors []*sq.Error `json:"errors"`
	}
	if json.Unmarshal([]byte(raw), &body) != nil {
		return nil
	}
	return body.Errors
}
