package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/db"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

func (s *service) findPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) findUser(ctx context.Context, userID, serviceID string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if serviceID != "" {
		user, err = s.users.FindUser(ctx, userID, serviceID)
	} else {
		id, parseErr := uuid.Parse(userID)
		if parseErr != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		user, err = s.users.FindUserByID(ctx, id)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// findOrder accepts the order number or the order uuid.
func (s *service) findOrder(ctx context.Context, ref string) (*models.Order, error) {
	var (
		order *models.Order
		err   error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		order, err = s.orders.FindByID(ctx, id)
	} else {
		order, err = s.orders.FindByNumber(ctx, ref)
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) actor(serviceID string, user *models.User) *outbox.ActorRef {
	if user == nil {
		return nil
	}
	if serviceID == "" {
		serviceID = user.ServiceID
	}
	return &outbox.ActorRef{ServiceID: serviceID, UserID: user.UserID}
}

// failure folds err into base. NOT_FOUND errors also set the NOT_FOUND status.
func (s *service) failure(ctx context.Context, base Result, err error) Result {
	base.Success = false
	if base.Status == "" {
		base.Status = StatusFailed
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		if s.logg != nil {
			s.logg.Error(ctx, "payment operation failed", err)
		}
		base.ErrorCode = CodeInternal
		base.ErrorMessage = err.Error()
		return base
	}
	base.ErrorCode = string(typed.Code())
	base.ErrorMessage = typed.Message()
	switch typed.Code() {
	case pkgerrors.CodeNotFound:
		base.Status = StatusNotFound
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		if s.logg != nil {
			s.logg.Error(ctx, "payment operation failed", err)
		}
		base.ErrorCode = CodeInternal
	}
	return base
}

func (s *service) paymentFailure(ctx context.Context, base Result, err error) Result {
	out := s.failure(ctx, base, err)
	if out.Status == StatusNotFound {
		out.ErrorCode = CodePaymentNotFound
	}
	return out
}

func (s *service) recoverInto(ctx context.Context, res *Result, base Result, op string) {
	r := recover()
	if r == nil {
		return
	}
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "operation", op), "payment operation panicked", fmt.Errorf("panic: %v", r))
	}
	base.Success = false
	base.Status = StatusFailed
	base.ErrorCode = CodeInternal
	base.ErrorMessage = "internal error"
	*res = base
}

func gatewayFailure(base Result, resp gateway.Response) Result {
	base.Success = false
	base.Status = StatusFailed
	base.ErrorCode = resp.ErrorCode
	base.ErrorMessage = resp.ErrorMessage
	return base
}

func withPayment(base Result, payment *models.Payment) Result {
	if payment == nil {
		return base
	}
	out := resultFromPayment(payment)
	out.Success = false
	out.Status = base.Status
	if base.Amount != nil {
		out.Amount = base.Amount
	}
	return out
}

func normalizeCreateInput(input CreatePaymentInput) CreatePaymentInput {
	input.UserID = strings.TrimSpace(input.UserID)
	input.ServiceID = strings.TrimSpace(input.ServiceID)
	input.Gateway = strings.ToUpper(strings.TrimSpace(input.Gateway))
	input.PaymentType = strings.ToUpper(strings.TrimSpace(input.PaymentType))
	if input.PaymentType == "" {
		input.PaymentType = string(enums.PaymentTypeOneTime)
	}
	input.Currency = gateway.DefaultCurrency(input.Currency)
	input.OrderID = strings.TrimSpace(input.OrderID)
	input.SubscriptionID = strings.TrimSpace(input.SubscriptionID)
	input.IdempotencyKey = strings.TrimSpace(input.IdempotencyKey)
	return input
}

func validateCreateInput(input CreatePaymentInput) error {
	missing := []string{}
	if input.UserID == "" {
		missing = append(missing, "userId")
	}
	if input.Gateway == "" {
		missing = append(missing, "paymentGateway")
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		missing = append(missing, "amount")
	}
	if input.Plan != nil {
		if !enums.IsGatewayInterval(input.Plan.Interval) {
			missing = append(missing, "subscriptionPlan.interval")
		}
		if input.Plan.IntervalCount < 0 {
			missing = append(missing, "subscriptionPlan.intervalCount")
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment request").
			WithDetails(map[string]any{"fields": missing})
	}
	if input.PaymentType == string(enums.PaymentTypeOneTime) && input.OrderID != "" && input.SubscriptionID != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "one-time payment cannot reference both an order and a subscription").
			WithDetails(map[string]any{"fields": []string{"orderId", "subscriptionId"}})
	}
	return nil
}

// requestFingerprint hashes the fields that decide what the provider is asked
// to do. Order and subscription refer to resolved ids, so a number and a uuid
// for the same order fingerprint alike.
func requestFingerprint(plan *createPlan) string {
	input := plan.input
	parts := []string{
		string(plan.kind),
		string(plan.provider),
		plan.currency,
		input.Amount.String(),
		input.PaymentMethodID,
	}
	if plan.order != nil {
		parts = append(parts, "order:"+plan.order.ID.String())
	}
	if plan.sub != nil {
		parts = append(parts, "subscription:"+plan.sub.ID.String())
	}
	if input.Plan != nil {
		trial := ""
		if input.Plan.TrialPeriodDays != nil {
			trial = strconv.Itoa(*input.Plan.TrialPeriodDays)
		}
		parts = append(parts, "plan:"+strings.ToLower(input.Plan.Interval), strconv.Itoa(planIntervalCount(input.Plan)), trial)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// scopedIdempotencyKey binds the caller's key to the tenant and user. The
// result keys the journal and is the key sent to providers.
func scopedIdempotencyKey(user *models.User, key string) string {
	if key == "" || user == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(user.ServiceID + "\x00" + user.UserID + "\x00" + key))
	return "idem_" + hex.EncodeToString(sum[:16])
}

func errKeyReused() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request")
}

func toListParams(params pagination.Params) (listParams, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return listParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return listParams{Limit: params.Limit, Cursor: cursor}, nil
}

func toListResult(rows []models.Payment, next *pagination.Cursor) *ListResult {
	out := &ListResult{Payments: resultsFromPayments(rows)}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out
}

func statusIn(status enums.PaymentStatus, allowed []enums.PaymentStatus) bool {
	for _, candidate := range allowed {
		if candidate == status {
			return true
		}
	}
	return false
}

func cloneMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func planIntervalCount(plan *SubscriptionPlanInput) int {
	if plan == nil || plan.IntervalCount <= 0 {
		return 1
	}
	return plan.IntervalCount
}

// billingCycleFor maps a gateway interval back to the closest billing cycle.
func billingCycleFor(plan *SubscriptionPlanInput) enums.BillingInterval {
	count := planIntervalCount(plan)
	switch strings.ToLower(plan.Interval) {
	case enums.GatewayIntervalDay:
		return enums.BillingIntervalDaily
	case enums.GatewayIntervalWeek:
		return enums.BillingIntervalWeekly
	case enums.GatewayIntervalYear:
		return enums.BillingIntervalYearly
	}
	if count == 3 {
		return enums.BillingIntervalQuarterly
	}
	if count == 12 {
		return enums.BillingIntervalYearly
	}
	return enums.BillingIntervalMonthly
}
