package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/pricing"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/displayformat"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type productLookup interface {
	FindProduct(ctx context.Context, productID, serviceID string) (*models.Product, error)
}

type userLookup interface {
	FindUser(ctx context.Context, userID, serviceID string) (*models.User, error)
}

// Service creates priced order snapshots.
type Service interface {
	InitOrder(ctx context.Context, input InitOrderInput) (*InitOrderResult, error)
}

// ServiceParams wires the order service collaborators.
type ServiceParams struct {
	Repository Repository
	Products   productLookup
	Users      userLookup
	Prices     pricing.PriceResolver
	Taxes      pricing.TaxCalculator
	Formatter  displayformat.Formatter
	TxRunner   txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Clock      func() time.Time
}

type service struct {
	repo      Repository
	products  productLookup
	users     userLookup
	prices    pricing.PriceResolver
	taxes     pricing.TaxCalculator
	formatter displayformat.Formatter
	tx        txRunner
	outbox    outboxPublisher
	numbers   *NumberGenerator
	logg      *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product lookup required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Prices == nil:
		return nil, fmt.Errorf("price resolver required")
	case params.Taxes == nil:
		return nil, fmt.Errorf("tax calculator required")
	case params.Formatter == nil:
		return nil, fmt.Errorf("display formatter required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      params.Repository,
		products:  params.Products,
		users:     params.Users,
		prices:    params.Prices,
		taxes:     params.Taxes,
		formatter: params.Formatter,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		numbers:   NewNumberGenerator(params.Clock),
		logg:      params.Logger,
	}, nil
}

// InitOrder resolves price and tax, then stores a PENDING order snapshot.
// Every lookup happens before the transaction so a miss never writes anything.
func (s *service) InitOrder(ctx context.Context, input InitOrderInput) (*InitOrderResult, error) {
	input = normalizeInput(input)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	product, err := s.products.FindProduct(ctx, input.ProductID, input.ServiceID)
	if err != nil {
		return nil, lookupError(err, "product not found", "load product")
	}
	user, err := s.users.FindUser(ctx, input.UserID, input.ServiceID)
	if err != nil {
		return nil, lookupError(err, "user not found", "load user")
	}

	price, err := s.prices.Resolve(ctx, product.ProductID, input.CountryCode)
	if err != nil {
		return nil, err
	}
	tax, err := s.taxes.Calculate(ctx, price.FinalPrice, input.CountryCode, price.CurrencyCode)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:    user.ID,
		ServiceID: input.ServiceID,
		ProductID: product.ProductID,
		// country whose tax rate applied
		CountryCode:    tax.Country.Code,
		CurrencyCode:   price.CurrencyCode,
		ProductPrice:   price.FinalPrice,
		TaxAmount:      tax.TaxAmount,
		DiscountAmount: price.DiscountAmount,
		TotalAmount:    tax.TotalAmount,
		Status:         enums.OrderStatusPending,
		Type:           product.Type.OrderType(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := s.numbers.Next(ctx, repo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate order number")
		}
		order.OrderNumber = number

		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ServiceID: input.ServiceID, UserID: input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				ServiceID:    order.ServiceID,
				ProductID:    order.ProductID,
				UserID:       order.UserID,
				Type:         order.Type,
				CurrencyCode: order.CurrencyCode,
				TotalAmount:  order.TotalAmount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_number": order.OrderNumber,
			"product_id":   order.ProductID,
			"country":      order.CountryCode,
			"total":        order.TotalAmount.String(),
		})
		s.logg.Info(logCtx, "order initialized")
	}

	return s.toResult(order), nil
}

func (s *service) toResult(order *models.Order) *InitOrderResult {
	country := order.CountryCode
	currency := order.CurrencyCode
	return &InitOrderResult{
		ResultCode:                ResultCodeSuccess,
		OrderID:                   order.OrderNumber,
		ProductPrice:              order.ProductPrice,
		DisplayProductPrice:       s.formatter.Format(order.ProductPrice, currency, country),
		DiscountAmount:            order.DiscountAmount,
		TaxAmount:                 order.TaxAmount,
		DisplayTaxAmount:          s.formatter.Format(order.TaxAmount, currency, country),
		TotalPaymentAmount:        order.TotalAmount,
		DisplayTotalPaymentAmount: s.formatter.Format(order.TotalAmount, currency, country),
		IsFreeTrial:               order.ProductPrice.IsZero(),
		CurrencyCode:              currency,
	}
}

func normalizeInput(input InitOrderInput) InitOrderInput {
	input.ServiceID = strings.TrimSpace(input.ServiceID)
	input.ProductID = strings.TrimSpace(input.ProductID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.CountryCode = strings.ToUpper(strings.TrimSpace(input.CountryCode))
	return input
}

func validateInput(input InitOrderInput) error {
	missing := []string{}
	if input.ServiceID == "" {
		missing = append(missing, "serviceId")
	}
	if input.ProductID == "" {
		missing = append(missing, "productId")
	}
	if input.UserID == "" {
		missing = append(missing, "userId")
	}
	if len(input.CountryCode) != 2 {
		missing = append(missing, "countryCode")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order request").
			WithDetails(map[string]any{"fields": missing})
	}
	return nil
}

// lookupError hides tenant mismatches behind a plain not-found.
func lookupError(err error, notFound, action string) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
