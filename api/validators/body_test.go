package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

type chargeBody struct {
	Amount   decimal.Decimal  `json:"amount" validate:"positive_amount"`
	Refund   *decimal.Decimal `json:"refund,omitempty" validate:"omitempty,positive_amount"`
	Currency string           `json:"currency" validate:"required,iso4217"`
	Gateway  string           `json:"gateway" validate:"omitempty,oneof=STRIPE PAYPAL SQUARE"`
}

func decode(t *testing.T, body string) (chargeBody, error) {
	t.Helper()
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	var dest chargeBody
	err := DecodeJSONBody(req, &dest)
	return dest, err
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	got, err := decode(t, `{"amount":"108.74","currency":"USD","gateway":"STRIPE"}`)
	require.NoError(t, err)
	require.True(t, got.Amount.Equal(decimal.RequireFromString("108.74")))
	require.Nil(t, got.Refund)
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	_, err := decode(t, `{"amount":"0","refund":"-1","currency":"XXY","gateway":"VENMO"}`)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be greater than zero", details["amount"])
	require.Equal(t, "must be greater than zero", details["refund"])
	require.Equal(t, "must be an ISO 4217 currency code", details["currency"])
	require.Contains(t, details["gateway"], "must be one of")
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	_, err := decode(t, `{"amount":"1","currency":"USD","card":"4242"}`)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPathParam(t *testing.T) {
	got, err := PathParam("  pay_123 ", "paymentId")
	require.NoError(t, err)
	require.Equal(t, "pay_123", got)

	_, err = PathParam("   ", "paymentId")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDecodeOptionalJSONBodyAllowsEmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))
	var dest struct {
		Reason string `json:"reason" validate:"max=5"`
	}
	require.NoError(t, DecodeOptionalJSONBody(req, &dest))

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"reason":"much too long"}`))
	require.True(t, pkgerrors.IsCode(DecodeOptionalJSONBody(req, &dest), pkgerrors.CodeValidation))
}
