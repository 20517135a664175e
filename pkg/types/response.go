package types

// SuccessEnvelope wraps every 2xx body, including billing results that
// report success=false with a 4xx status.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the error body. Retryable tells clients whether repeating the
// request with the same Idempotency-Key can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
