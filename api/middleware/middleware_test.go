package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
)

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	require.Contains(t, resp.Body.String(), string(pkgerrors.CodeInternal))
	require.NotContains(t, resp.Body.String(), "boom")
}

func TestRecovererReraisesAbort(t *testing.T) {
	h := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	h := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "  req-42 ")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Equal(t, "req-42", resp.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", 300))
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	require.Len(t, resp.Header().Get(requestIDHeader), maxRequestIDLen)

	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, resp.Header().Get(requestIDHeader), 36)
}

func TestTenantCopiesHeader(t *testing.T) {
	var got string
	h := Tenant(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ServiceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ServiceIDHeader, " svc-a ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "svc-a", got)

	got = "unset"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, got)
}

func TestTenantRejectsMalformedServiceID(t *testing.T) {
	for name, header := range map[string]string{
		"too long":      "svc-a-extra-long",
		"bad character": "svc/a",
		"whitespace":    "svc a",
	} {
		t.Run(name, func(t *testing.T) {
			called := false
			h := Tenant(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(ServiceIDHeader, header)
			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, req)

			require.Equal(t, http.StatusBadRequest, resp.Code)
			require.Contains(t, resp.Body.String(), string(pkgerrors.CodeValidation))
			require.False(t, called, "handler must not see a rejected tenant")
		})
	}
}
