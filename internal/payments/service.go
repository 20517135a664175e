// Package payments drives the payment and subscription lifecycle through the
// gateway registry and keeps local records in step with provider outcomes.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/internal/subscriptions"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	dbtypes "github.com/openbillingstore/billing-core/pkg/db/types"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewayRegistry interface {
	Get(name string) (gateway.Adapter, error)
	Providers() []enums.PaymentProvider
}

type userLookup interface {
	FindUser(ctx context.Context, userID, serviceID string) (*models.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service is the payment orchestrator. Operations returning Result never fail
// with an error: every fault is folded into a failed Result.
type Service interface {
	CreatePayment(ctx context.Context, input CreatePaymentInput) Result
	ConfirmPayment(ctx context.Context, paymentID string) Result
	CancelPayment(ctx context.Context, paymentID string) Result
	RefundPayment(ctx context.Context, input RefundInput) Result
	RetrievePayment(ctx context.Context, paymentID string) Result
	SyncPayment(ctx context.Context, paymentID string) Result

	ListByUser(ctx context.Context, userID string, params pagination.Params) (*ListResult, error)
	ListByStatus(ctx context.Context, status string, params pagination.Params) (*ListResult, error)

	CancelSubscription(ctx context.Context, input CancelSubscriptionInput) Result
	UpdateSubscription(ctx context.Context, input UpdateSubscriptionInput) Result
	RetrieveSubscription(ctx context.Context, subscriptionID string) Result
	SubscriptionPayments(ctx context.Context, subscriptionID string) ([]Result, error)

	Gateways() []enums.PaymentProvider
}

// ServiceParams wires the payment orchestrator collaborators.
type ServiceParams struct {
	Repository    Repository
	Orders        orders.Repository
	Subscriptions subscriptions.Service
	Users         userLookup
	Gateways      gatewayRegistry
	Journal       *Journal
	TxRunner      txRunner
	Outbox        outboxPublisher
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	repo     Repository
	orders   orders.Repository
	subs     subscriptions.Service
	users    userLookup
	gateways gatewayRegistry
	journal  *Journal
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the payment orchestrator with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repository == nil:
		return nil, fmt.Errorf("payments repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Subscriptions == nil:
		return nil, fmt.Errorf("subscriptions service required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Gateways == nil:
		return nil, fmt.Errorf("gateway registry required")
	case params.TxRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repository,
		orders:   params.Orders,
		subs:     params.Subscriptions,
		users:    params.Users,
		gateways: params.Gateways,
		journal:  params.Journal,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		logg:     params.Logger,
		now:      clock,
	}, nil
}

func (s *service) Gateways() []enums.PaymentProvider {
	return s.gateways.Providers()
}

type createPlan struct {
	input    CreatePaymentInput
	kind     enums.PaymentType
	currency string
	user     *models.User
	order    *models.Order
	sub      *models.Subscription
	adapter  gateway.Adapter
	provider enums.PaymentProvider

	// requestHash fingerprints the request; scopedKey is the caller's key
	// bound to the tenant and user, empty without a key.
	requestHash string
	scopedKey   string
}

// CreatePayment calls the provider first and persists a Payment only when the
// provider accepted it. Idempotency keys are scoped to the resolved user: a
// repeated request returns the stored payment, a journaled provider response
// is committed without calling the provider again, and a key reused with a
// different request fails with IDEMPOTENCY_KEY_REUSED.
func (s *service) CreatePayment(ctx context.Context, input CreatePaymentInput) (res Result) {
	input = normalizeCreateInput(input)
	base := Result{
		Status:         StatusFailed,
		PaymentType:    input.PaymentType,
		Amount:         &input.Amount,
		Currency:       input.Currency,
		PaymentGateway: input.Gateway,
	}
	defer s.recoverInto(ctx, &res, base, "create payment")

	plan, err := s.prepareCreate(ctx, input)
	if err != nil {
		return s.failure(ctx, base, err)
	}
	base.PaymentGateway = string(plan.provider)
	base.Currency = plan.currency
	base.PaymentType = string(plan.kind)

	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, plan.user.ID, input.IdempotencyKey)
		switch {
		case err == nil:
			return s.replayStored(ctx, base, plan, existing)
		case !db.IsNotFound(err):
			return s.failure(ctx, base, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment by idempotency key"))
		}
	}

	resp, err := s.journal.Load(ctx, plan.scopedKey, plan.requestHash)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeIdempotency) {
			return s.failure(ctx, base, err)
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "gateway journal read failed")
		}
	}
	replayed := resp != nil
	if !replayed {
		fresh := s.callCreate(ctx, plan)
		resp = &fresh
	}
	if !resp.Success {
		base.ErrorCode = resp.ErrorCode
		base.ErrorMessage = resp.ErrorMessage
		return base
	}
	if !replayed {
		if err := s.journal.Record(ctx, plan.scopedKey, plan.requestHash, *resp); err != nil && s.logg != nil {
			s.logg.Error(ctx, "gateway journal write failed", err)
		}
	}

	payment, err := s.commitCreate(ctx, plan, *resp)
	if err != nil {
		if input.IdempotencyKey != "" && db.IsUniqueViolation(err, "") {
			if existing, findErr := s.repo.FindByIdempotencyKey(ctx, plan.user.ID, input.IdempotencyKey); findErr == nil {
				return s.replayStored(ctx, base, plan, existing)
			}
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"provider":        plan.provider,
				"idempotency_key": input.IdempotencyKey,
				"external_id":     resp.ExternalTransactionID,
			})
			s.logg.Error(logCtx, "payment commit failed after gateway success", err)
		}
		base.ErrorCode = CodeInternal
		base.ErrorMessage = "payment accepted by gateway but could not be recorded"
		return base
	}

	if err := s.journal.Clear(ctx, plan.scopedKey); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "gateway journal clear failed")
	}

	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(s.logg.WithProvider(ctx, string(plan.provider)), payment.PaymentID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"status":   payment.Status,
			"type":     payment.Type,
			"replayed": replayed,
		})
		s.logg.Info(logCtx, "payment created")
	}

	out := resultFromPayment(payment)
	out.SubscriptionDetails = resp.SubscriptionDetails
	out.Metadata = resp.Metadata
	return out
}

// replayStored answers a repeated request with the payment its key created.
// A key reused for a different request is rejected.
func (s *service) replayStored(ctx context.Context, base Result, plan *createPlan, existing *models.Payment) Result {
	if existing.RequestHash != nil && *existing.RequestHash != plan.requestHash {
		return s.failure(ctx, base, errKeyReused())
	}
	return resultFromPayment(existing)
}

func (s *service) prepareCreate(ctx context.Context, input CreatePaymentInput) (*createPlan, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}
	kind, err := enums.ParsePaymentType(input.PaymentType)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type").
			WithDetails(map[string]any{"paymentType": input.PaymentType})
	}
	currency, err := gateway.ValidateCurrency(input.Currency)
	if err != nil {
		return nil, err
	}

	plan := &createPlan{input: input, kind: kind, currency: currency}
	if plan.user, err = s.findUser(ctx, input.UserID, input.ServiceID); err != nil {
		return nil, err
	}
	if input.OrderID != "" {
		if plan.order, err = s.findOrder(ctx, input.OrderID); err != nil {
			return nil, err
		}
		if plan.order.UserID != plan.user.ID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
	}
	if input.SubscriptionID != "" {
		if plan.sub, err = s.subs.Resolve(ctx, input.SubscriptionID); err != nil {
			return nil, err
		}
		if plan.sub.UserID != plan.user.ID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
	}
	if plan.adapter, err = s.gateways.Get(input.Gateway); err != nil {
		return nil, err
	}
	plan.provider = plan.adapter.Name()
	plan.requestHash = requestFingerprint(plan)
	plan.scopedKey = scopedIdempotencyKey(plan.user, input.IdempotencyKey)
	return plan, nil
}

func (s *service) callCreate(ctx context.Context, plan *createPlan) gateway.Response {
	input := plan.input
	key := plan.scopedKey
	if key == "" {
		key = gateway.NewIdempotencyKey(strings.ToLower(string(plan.provider)))
	}
	metadata := cloneMetadata(input.Metadata)
	if plan.order != nil {
		metadata["orderId"] = plan.order.OrderNumber
	}

	if plan.kind == enums.PaymentTypeRecurring && input.Plan != nil {
		return plan.adapter.CreateSubscription(ctx, gateway.SubscriptionRequest{
			CustomerID:      plan.user.ID.String(),
			PaymentMethodID: input.PaymentMethodID,
			Amount:          input.Amount,
			Currency:        plan.currency,
			Interval:        strings.ToLower(input.Plan.Interval),
			IntervalCount:   input.Plan.IntervalCount,
			TrialPeriodDays: input.Plan.TrialPeriodDays,
			Description:     input.Plan.Description,
			IdempotencyKey:  key,
			Metadata:        metadata,
		})
	}
	return plan.adapter.CreatePayment(ctx, gateway.PaymentRequest{
		Amount:          input.Amount,
		Currency:        plan.currency,
		PaymentMethodID: input.PaymentMethodID,
		CustomerID:      plan.user.ID.String(),
		IdempotencyKey:  key,
		Metadata:        metadata,
	})
}

func (s *service) commitCreate(ctx context.Context, plan *createPlan, resp gateway.Response) (*models.Payment, error) {
	input := plan.input
	paymentID := resp.PaymentID
	if paymentID == "" {
		paymentID = gateway.NewPaymentID()
	}
	method := string(plan.provider)
	payment := &models.Payment{
		PaymentID:      paymentID,
		UserID:         plan.user.ID,
		Amount:         input.Amount,
		Currency:       plan.currency,
		Method:         &method,
		Status:         resp.CanonicalStatus(),
		Type:           plan.kind,
		PaymentGateway: string(plan.provider),
		Metadata:       dbtypes.Metadata(cloneMetadata(input.Metadata)),
	}
	if plan.order != nil {
		payment.OrderID = &plan.order.ID
	}
	if plan.sub != nil {
		payment.SubscriptionID = &plan.sub.ID
	}
	if resp.ExternalTransactionID != "" {
		external := resp.ExternalTransactionID
		payment.ExternalTransactionID = &external
	}
	if resp.ExternalSubscriptionID != "" {
		external := resp.ExternalSubscriptionID
		payment.ExternalSubscriptionID = &external
	}
	if input.IdempotencyKey != "" {
		key := input.IdempotencyKey
		payment.IdempotencyKey = &key
	}
	hash := plan.requestHash
	payment.RequestHash = &hash
	if payment.Status != enums.PaymentStatusPending {
		now := s.now().UTC()
		payment.ProcessedAt = &now
	}
	actor := s.actor(input.ServiceID, plan.user)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if plan.kind == enums.PaymentTypeRecurring && input.Plan != nil && resp.ExternalSubscriptionID != "" {
			sub, err := s.subs.OpenWithTx(ctx, tx, s.openInput(plan, resp, actor))
			if err != nil {
				return err
			}
			payment.SubscriptionID = &sub.ID
		}

		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return err
		}
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor,
			Data: payloads.PaymentCreatedEvent{
				PaymentID:             payment.PaymentID,
				UserID:                payment.UserID,
				OrderID:               payment.OrderID,
				SubscriptionID:        payment.SubscriptionID,
				Provider:              payment.PaymentGateway,
				Type:                  payment.Type,
				Status:                payment.Status,
				Amount:                payment.Amount,
				Currency:              payment.Currency,
				ExternalTransactionID: resp.ExternalTransactionID,
			},
		})
		if err != nil {
			return err
		}
		return s.applyOrderEffect(ctx, tx, payment, actor)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *service) openInput(plan *createPlan, resp gateway.Response, actor *outbox.ActorRef) subscriptions.OpenInput {
	input := plan.input
	productID := ""
	if plan.order != nil {
		productID = plan.order.ProductID
	}
	if productID == "" {
		productID = input.Metadata["productId"]
	}
	status := resp.Status
	if resp.SubscriptionDetails != nil && resp.SubscriptionDetails.Status != "" {
		status = resp.SubscriptionDetails.Status
	}
	var orderID *uuid.UUID
	if plan.order != nil {
		orderID = &plan.order.ID
	}
	label := input.Plan.Description
	if label == "" {
		label = fmt.Sprintf("%d %s", planIntervalCount(input.Plan), strings.ToLower(input.Plan.Interval))
	}
	return subscriptions.OpenInput{
		UserID:       plan.user.ID,
		ProductID:    productID,
		OrderID:      orderID,
		Plan:         label,
		BillingCycle: billingCycleFor(input.Plan),
		Provider:     plan.provider,
		ExternalID:   resp.ExternalSubscriptionID,
		Status:       status,
		Details:      resp.SubscriptionDetails,
		Actor:        actor,
	}
}
