package square

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"
)

var (
	errAccessTokenRequired = errors.New("square access token is required")
	errLocationRequired    = errors.New("square location id is required")
	errInvalidSquareEnv    = fmt.Errorf("square environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("square logger is required")
)

// Client wraps the Square SDK for payments, refunds and subscriptions.
// Every call logs a request line and maps SDK failures onto pkg/errors codes.
type Client struct {
	sdk             *sqclient.Client
	environment     string
	locationID      string
	planVariationID string
	logger          *logger.Logger
}

type settings struct {
	env             string
	baseURL         string
	token           string
	locationID      string
	planVariationID string
}

func resolveSettings(cfg config.SquareConfig) (settings, error) {
	s := settings{
		env:             strings.ToLower(strings.TrimSpace(cfg.Environment())),
		token:           strings.TrimSpace(cfg.AccessToken),
		locationID:      strings.TrimSpace(cfg.LocationID),
		planVariationID: strings.TrimSpace(cfg.PlanVariationID),
	}
	switch s.env {
	case "", sandboxEnv:
		s.env, s.baseURL = sandboxEnv, "https://connect.squareupsandbox.com"
	case productionEnv:
		s.baseURL = "https://connect.squareup.com"
	default:
		return settings{}, errInvalidSquareEnv
	}
	if s.token == "" {
		return settings{}, errAccessTokenRequired
	}
	if s.locationID == "" {
		return settings{}, errLocationRequired
	}
	return s, nil
}

func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	s, err := resolveSettings(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		sdk:             sqclient.NewClient(sqoption.WithBaseURL(s.baseURL), sqoption.WithToken(s.token)),
		environment:     s.env,
		locationID:      s.locationID,
		planVariationID: s.planVariationID,
		logger:          logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": s.env, "location_id": s.locationID}), "square client ready")
	return c, nil
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// ensureIdempotencyKey keeps a caller key and mints "<prefix>-<uuid>" otherwise.
func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if key := strings.TrimSpace(provided); key != "" {
		return key
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = "billing"
	}
	return prefix + "-" + uuid.NewString()
}

var sensitiveFields = []string{"card", "nonce", "token", "cvv", "cvc", "secret", "email", "phone"}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, marker := range sensitiveFields {
		if strings.Contains(lower, marker) {
			return "[REDACTED]"
		}
	}
	return value
}

// log writes one line per phase. The "error" phase expects fields["error"].
func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	safe := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		safe[k] = redact(k, v)
	}
	safe["operation"] = op
	safe["phase"] = phase
	ctx = c.logger.WithProvider(c.logger.WithFields(ctx, safe), "SQUARE")

	if phase != "error" {
		c.logger.Info(ctx, "square "+phase)
		return
	}
	cause, _ := fields["error"].(string)
	c.logger.Error(ctx, "square "+op, errors.New(cause))
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func subscriptionStatusString(status *sq.SubscriptionStatus) string {
	if status == nil {
		return ""
	}
	return string(*status)
}
