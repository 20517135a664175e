package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openbillingstore/billing-core/api/responses"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	pkgredis "github.com/openbillingstore/billing-core/pkg/redis"
)

const (
	DefaultIdempotencyHeader = "Idempotency-Key"
	replayedHeader           = "Idempotent-Replayed"
	defaultIdempotencyTTL    = 24 * time.Hour
	maxIdempotencyKeyLen     = 255
)

// Mutating billing routes, as path.Match globs. Both chi patterns
// ("{paymentId}") and concrete paths match a "*" segment.
var idempotentRoutes = map[string][]string{
	http.MethodPost: {
		"/api/v1/orders/init",
		"/api/v1/payments/pay",
		"/api/v1/payments/*/confirm",
		"/api/v1/payments/*/cancel",
		"/api/v1/payments/*/refund",
		"/api/v1/subscriptions/*/cancel",
	},
	http.MethodPut: {
		"/api/v1/subscriptions/*",
	},
}

type IdempotencyOptions struct {
	Header string
	TTL    time.Duration
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

type replayCache struct {
	store  pkgredis.IdempotencyStore
	header string
	ttl    time.Duration
	logg   *logger.Logger
}

// Idempotency replays the first non-5xx response a mutating route produced for
// a tenant's key. Requests without a key pass straight through; a reused key
// with a different body is rejected.
func Idempotency(store pkgredis.IdempotencyStore, opts IdempotencyOptions, logg *logger.Logger) func(http.Handler) http.Handler {
	cache := &replayCache{store: store, header: strings.TrimSpace(opts.Header), ttl: opts.TTL, logg: logg}
	if cache.header == "" {
		cache.header = DefaultIdempotencyHeader
	}
	if cache.ttl <= 0 {
		cache.ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(cache.header))
			if store == nil || clientKey == "" || !isIdempotentRoute(r.Method, routePattern(r)) {
				next.ServeHTTP(w, r)
				return
			}
			cache.serve(w, r, next, clientKey)
		})
	}
}

func (c *replayCache) serve(w http.ResponseWriter, r *http.Request, next http.Handler, clientKey string) {
	ctx := r.Context()
	if len(clientKey) > maxIdempotencyKeyLen {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, c.header+" header is too long"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	key := c.store.IdempotencyKey(strings.Join([]string{ServiceIDFromContext(ctx), r.Method, r.URL.Path}, "|"), clientKey)

	record, err := c.load(r, key)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	if record != nil {
		if record.RequestHash != hash {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		w.Header().Set(replayedHeader, "true")
		record.replay(w)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r.WithContext(WithIdempotencyKey(ctx, clientKey)))
	c.save(r, key, hash, capture)
}

func (c *replayCache) load(r *http.Request, key string) (*idempotencyRecord, error) {
	raw, err := c.store.Get(r.Context(), key)
	if pkgredis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &record, nil
}

// save keeps the captured response unless it was a server error, which the
// client may retry with the same key.
func (c *replayCache) save(r *http.Request, key, hash string, capture *responseCapture) {
	status := capture.status
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		return
	}
	record := idempotencyRecord{
		Status:      status,
		Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
		RequestHash: hash,
	}
	if ct := capture.Header().Get("Content-Type"); ct != "" {
		record.Headers = map[string]string{"Content-Type": ct}
	}
	payload, err := json.Marshal(record)
	if err == nil {
		_, err = c.store.SetNX(r.Context(), key, string(payload), c.ttl)
	}
	if err != nil && c.logg != nil {
		c.logg.Error(c.logg.WithField(r.Context(), "idempotency_key", key), "persist idempotency record", err)
	}
}

func (rec *idempotencyRecord) replay(w http.ResponseWriter) {
	for name, value := range rec.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(rec.Status)
	if body, err := base64.StdEncoding.DecodeString(rec.Body); err == nil {
		_, _ = w.Write(body)
	}
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		// mounted routers report "/*" until the leaf route matches
		if pattern := rc.RoutePattern(); pattern != "" && !strings.Contains(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func isIdempotentRoute(method, pattern string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return false
	}
	for _, glob := range idempotentRoutes[method] {
		if ok, _ := path.Match(glob, pattern); ok {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
