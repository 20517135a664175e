package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return body.Error
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"orderId": "ORD-2025060112-000001"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", w.Code)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["orderId"] != "ORD-2025060112-000001" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorValidationKeepsMessageAndDetails(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").
		WithDetails(map[string]any{"fields": []string{"amount"}})
	WriteError(context.Background(), nil, w, err)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", w.Code)
	}
	apiErr := decodeError(t, w)
	if apiErr.Message != "invalid payment request" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
	if apiErr.Details == nil || apiErr.Retryable {
		t.Fatalf("expected details and retryable=false, got %+v", apiErr)
	}
}

func TestWriteErrorIdempotencyReuseIsConflict(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 but got %d", w.Code)
	}
	if apiErr := decodeError(t, w); apiErr.Code != string(pkgerrors.CodeIdempotency) || apiErr.Retryable {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestWriteErrorHidesProviderAndInternalText(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		code      pkgerrors.Code
		retryable bool
	}{
		{"untyped", errors.New("dial tcp 10.0.0.5:5432: refused"), http.StatusInternalServerError, pkgerrors.CodeInternal, true},
		{"gateway", pkgerrors.New(pkgerrors.CodeGateway, "stripe: sk_live key rejected"), http.StatusBadGateway, pkgerrors.CodeGateway, true},
		{"configuration", pkgerrors.New(pkgerrors.CodeConfiguration, "paypal client secret missing"), http.StatusInternalServerError, pkgerrors.CodeConfiguration, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected status %d but got %d", tc.status, w.Code)
			}
			apiErr := decodeError(t, w)
			if apiErr.Code != string(tc.code) || apiErr.Retryable != tc.retryable {
				t.Fatalf("unexpected error %+v", apiErr)
			}
			if apiErr.Message != pkgerrors.MetadataFor(tc.code).PublicMessage {
				t.Fatalf("internal text leaked: %q", apiErr.Message)
			}
		})
	}
}

func TestWriteErrorLogLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "responses-test", Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "payment not found"))
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), "request rejected") {
		t.Fatalf("expected warn log, got %s", buf.String())
	}

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeGateway, "timeout").
		WithDetails(map[string]any{"provider": "STRIPE"}))
	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"provider":"STRIPE"`) {
		t.Fatalf("expected error log with provider, got %s", out)
	}
}
