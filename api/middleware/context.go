package middleware

import "context"

type contextKey string

const ctxServiceID contextKey = "service_id"

// ServiceIDHeader names the tenant platform on every request.
const ServiceIDHeader = "X-Service-Id"

func ServiceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxServiceID).(string); ok {
		return v
	}
	return ""
}

// WithServiceID injects the tenant service identifier into the context.
func WithServiceID(ctx context.Context, serviceID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxServiceID, serviceID)
}

const ctxIdempotencyKey contextKey = "idempotency_key"

// IdempotencyKeyFromContext returns the caller's idempotency key, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxIdempotencyKey).(string); ok {
		return v
	}
	return ""
}

func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdempotencyKey, key)
}
