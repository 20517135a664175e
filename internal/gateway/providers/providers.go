// Package providers builds the gateway registry from configuration. Only
// providers with credentials are registered.
package providers

import (
	"context"
	"fmt"

	"github.com/openbillingstore/billing-core/internal/gateway"
	paypaladapter "github.com/openbillingstore/billing-core/internal/gateway/paypal"
	squareadapter "github.com/openbillingstore/billing-core/internal/gateway/square"
	stripeadapter "github.com/openbillingstore/billing-core/internal/gateway/stripe"
	"github.com/openbillingstore/billing-core/pkg/config"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/paypal"
	"github.com/openbillingstore/billing-core/pkg/square"
	"github.com/openbillingstore/billing-core/pkg/stripe"
)

// Adapters returns an adapter for every enabled provider in cfg.
func Adapters(ctx context.Context, cfg *config.Config, logg *logger.Logger) ([]gateway.Adapter, error) {
	var adapters []gateway.Adapter
	if cfg.Stripe.Enabled() {
		client, err := stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			return nil, fmt.Errorf("stripe client: %w", err)
		}
		adapters = append(adapters, stripeadapter.New(client))
	}
	if cfg.PayPal.Enabled() {
		client, err := paypal.NewClient(ctx, cfg.PayPal, logg)
		if err != nil {
			return nil, fmt.Errorf("paypal client: %w", err)
		}
		adapters = append(adapters, paypaladapter.New(client))
	}
	if cfg.Square.Enabled() {
		client, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		adapters = append(adapters, squareadapter.New(client))
	}
	return adapters, nil
}

// Registry registers the enabled adapters behind the timeout and metrics
// decorators. rec may be nil.
func Registry(ctx context.Context, cfg *config.Config, logg *logger.Logger, rec gateway.Recorder) (*gateway.Registry, error) {
	adapters, err := Adapters(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	if len(adapters) == 0 && logg != nil {
		logg.Warn(ctx, "no payment providers configured")
	}
	return gateway.NewRegistry(adapters,
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.Instrument(rec, logg),
	)
}
