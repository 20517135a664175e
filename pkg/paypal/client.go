// Package paypal is a thin REST client for PayPal Orders, Payments and
// Subscriptions with client-credentials auth.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/openbillingstore/billing-core/pkg/config"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"

	requestIDHeader = "PayPal-Request-Id"
)

var (
	errCredentialsRequired = errors.New("paypal client id and secret are required")
	errInvalidPayPalEnv    = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
)

var baseURLs = map[string]string{
	sandboxEnv: "https://api-m.sandbox.paypal.com",
	liveEnv:    "https://api-m.paypal.com",
}

// Client issues authenticated PayPal REST calls.
type Client struct {
	http        *http.Client
	baseURL     string
	environment string
	planID      string
	returnURL   string
	cancelURL   string
	logger      *logger.Logger
}

// NewClient builds a client whose transport fetches and refreshes OAuth tokens.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	c, err := newClient(cfg, baseURLs[env], &http.Client{Timeout: 30 * time.Second}, logg)
	if err != nil {
		return nil, err
	}
	c.environment = env
	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}
	return c, nil
}

func newClient(cfg config.PayPalConfig, baseURL string, base *http.Client, logg *logger.Logger) (*Client, error) {
	id := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.ClientSecret)
	if id == "" || secret == "" {
		return nil, errCredentialsRequired
	}
	creds := clientcredentials.Config{
		ClientID:     id,
		ClientSecret: secret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := creds.Client(tokenCtx)
	httpClient.Timeout = base.Timeout

	return &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		planID:    strings.TrimSpace(cfg.PlanID),
		returnURL: strings.TrimSpace(cfg.ReturnURL),
		cancelURL: strings.TrimSpace(cfg.CancelURL),
		logger:    logg,
	}, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// APIError is the error body PayPal returns on non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, requestID string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode paypal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build paypal request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}

	if c.logger != nil {
		c.logger.Debug(c.logger.WithFields(ctx, map[string]any{"method": method, "path": path}), "paypal request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "paypal request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read paypal response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return pkgerrors.Wrap(domainCodeForStatus(resp.StatusCode), apiErr, apiErr.Error())
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal response")
	}
	return nil
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusUnprocessableEntity:
		return pkgerrors.CodeGateway
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
