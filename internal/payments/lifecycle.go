package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	dbtypes "github.com/openbillingstore/billing-core/pkg/db/types"
	"github.com/openbillingstore/billing-core/pkg/enums"
	pkgerrors "github.com/openbillingstore/billing-core/pkg/errors"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
	"github.com/openbillingstore/billing-core/pkg/pagination"
)

// ConfirmPayment settles a PENDING or PROCESSING payment with its provider.
func (s *service) ConfirmPayment(ctx context.Context, paymentID string) (res Result) {
	base := Result{Status: StatusFailed, PaymentID: paymentID}
	defer s.recoverInto(ctx, &res, base, "confirm payment")

	payment, adapter, err := s.loadForAction(ctx, paymentID, enums.PaymentStatusPending, enums.PaymentStatusProcessing)
	if err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	resp := adapter.ConfirmPayment(ctx, payment.ExternalReference())
	if !resp.Success {
		return gatewayFailure(withPayment(base, payment), resp)
	}
	if err := s.applyStatus(ctx, payment, resp.CanonicalStatus(), "confirm"); err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	out := resultFromPayment(payment)
	out.Metadata = resp.Metadata
	return out
}

// CancelPayment voids a PENDING or PROCESSING payment.
func (s *service) CancelPayment(ctx context.Context, paymentID string) (res Result) {
	base := Result{Status: StatusFailed, PaymentID: paymentID}
	defer s.recoverInto(ctx, &res, base, "cancel payment")

	payment, adapter, err := s.loadForAction(ctx, paymentID, enums.PaymentStatusPending, enums.PaymentStatusProcessing)
	if err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	resp := adapter.CancelPayment(ctx, payment.ExternalReference())
	if !resp.Success {
		return gatewayFailure(withPayment(base, payment), resp)
	}
	if err := s.applyStatus(ctx, payment, enums.PaymentStatusCancelled, "cancel"); err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	return resultFromPayment(payment)
}

// RefundPayment refunds a COMPLETED payment in full or in part. The payment
// moves to REFUNDED either way.
func (s *service) RefundPayment(ctx context.Context, input RefundInput) (res Result) {
	base := Result{Status: StatusFailed, PaymentID: input.PaymentID, Amount: input.Amount}
	defer s.recoverInto(ctx, &res, base, "refund payment")

	payment, adapter, err := s.loadForAction(ctx, input.PaymentID, enums.PaymentStatusCompleted)
	if err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	if input.Amount != nil && input.Amount.GreaterThan(payment.Amount) {
		return s.paymentFailure(ctx, withPayment(base, payment), pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds payment amount"))
	}
	resp := adapter.RefundPayment(ctx, payment.ExternalReference(), input.Amount)
	if !resp.Success {
		return gatewayFailure(withPayment(base, payment), resp)
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		if payment.Metadata == nil {
			payment.Metadata = dbtypes.Metadata{}
		}
		payment.Metadata["refundReason"] = reason
	}
	if err := s.applyStatus(ctx, payment, enums.PaymentStatusRefunded, "refund"); err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	out := resultFromPayment(payment)
	if resp.Amount != nil {
		out.Amount = resp.Amount
	}
	return out
}

func (s *service) RetrievePayment(ctx context.Context, paymentID string) (res Result) {
	base := Result{Status: StatusNotFound, PaymentID: paymentID}
	defer s.recoverInto(ctx, &res, base, "retrieve payment")

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return s.paymentFailure(ctx, base, err)
	}
	return resultFromPayment(payment)
}

// SyncPayment asks the provider for the current state of a payment and
// applies it when the state machine allows the move. Every attempt stamps
// reconciled_at, whatever the provider answers.
func (s *service) SyncPayment(ctx context.Context, paymentID string) (res Result) {
	base := Result{Status: StatusFailed, PaymentID: paymentID}
	defer s.recoverInto(ctx, &res, base, "sync payment")

	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return s.paymentFailure(ctx, base, err)
	}
	checked := s.now().UTC()
	payment.ReconciledAt = &checked
	if err := s.repo.MarkReconciled(ctx, payment.ID, checked); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithPaymentID(s.logg.WithField(ctx, "error", err.Error()), payment.PaymentID), "stamp reconciliation attempt")
	}
	adapter, err := s.adapterFor(payment)
	if err != nil {
		return s.paymentFailure(ctx, withPayment(base, payment), err)
	}
	resp := adapter.RetrievePayment(ctx, payment.ExternalReference())
	if !resp.Success {
		return gatewayFailure(withPayment(base, payment), resp)
	}
	next := resp.CanonicalStatus()
	if next != payment.Status && payment.Status.CanTransitionTo(next) {
		if err := s.applyStatus(ctx, payment, next, "reconciliation"); err != nil {
			return s.paymentFailure(ctx, withPayment(base, payment), err)
		}
	}
	return resultFromPayment(payment)
}

func (s *service) ListByUser(ctx context.Context, userID string, params pagination.Params) (*ListResult, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id")
	}
	query, err := toListParams(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByUser(ctx, id, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments by user")
	}
	return toListResult(rows, next), nil
}

func (s *service) ListByStatus(ctx context.Context, status string, params pagination.Params) (*ListResult, error) {
	parsed, err := enums.ParsePaymentStatus(status)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"status": status, "allowed": enums.ValidPaymentStatuses()})
	}
	query, err := toListParams(params)
	if err != nil {
		return nil, err
	}
	rows, next, err := s.repo.ListByStatus(ctx, parsed, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments by status")
	}
	return toListResult(rows, next), nil
}

// loadForAction loads the payment, checks the status guard and resolves the
// adapter from the stored provider, all before any provider call.
func (s *service) loadForAction(ctx context.Context, paymentID string, allowed ...enums.PaymentStatus) (*models.Payment, gateway.Adapter, error) {
	payment, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if !statusIn(payment.Status, allowed) {
		return payment, nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s", payment.Status)).
			WithDetails(map[string]any{"status": payment.Status, "allowed": allowed})
	}
	adapter, err := s.adapterFor(payment)
	if err != nil {
		return payment, nil, err
	}
	return payment, adapter, nil
}

func (s *service) adapterFor(payment *models.Payment) (gateway.Adapter, error) {
	if strings.TrimSpace(payment.PaymentGateway) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment has no stored gateway")
	}
	return s.gateways.Get(payment.PaymentGateway)
}

// applyStatus moves the payment forward and applies the order side effect in
// one transaction.
func (s *service) applyStatus(ctx context.Context, payment *models.Payment, to enums.PaymentStatus, source string) error {
	from := payment.Status
	if from == to {
		return nil
	}
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment cannot move from %s to %s", from, to))
	}
	now := s.now().UTC()
	payment.Status = to
	payment.ProcessedAt = &now

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentStatusChanged,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentStatusChangedEvent{
				PaymentID: payment.PaymentID,
				Provider:  payment.PaymentGateway,
				From:      from,
				To:        to,
				Source:    source,
				ChangedAt: now,
			},
		})
		if err != nil {
			return err
		}
		return s.applyOrderEffect(ctx, tx, payment, nil)
	})
	if err != nil {
		payment.Status = from
		return err
	}

	if s.logg != nil {
		logCtx := s.logg.WithPaymentID(s.logg.WithProvider(ctx, payment.PaymentGateway), payment.PaymentID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from": from, "to": to, "source": source})
		s.logg.Info(logCtx, "payment status changed")
	}
	return nil
}

// applyOrderEffect mirrors a settled payment onto its order.
func (s *service) applyOrderEffect(ctx context.Context, tx *gorm.DB, payment *models.Payment, actor *outbox.ActorRef) error {
	if payment.OrderID == nil {
		return nil
	}
	var target enums.OrderStatus
	switch payment.Status {
	case enums.PaymentStatusCompleted:
		target = enums.OrderStatusPaid
	case enums.PaymentStatusRefunded:
		target = enums.OrderStatusRefunded
	case enums.PaymentStatusCancelled:
		target = enums.OrderStatusCancelled
	default:
		return nil
	}

	repo := s.orders.WithTx(tx)
	order, err := repo.FindByID(ctx, *payment.OrderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == target {
		return nil
	}
	now := s.now().UTC()
	var paidAt *time.Time
	if target == enums.OrderStatusPaid {
		paidAt = &now
	}
	if err := repo.UpdateStatus(ctx, order.ID, target, paidAt); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			From:        order.Status,
			To:          target,
			PaymentID:   payment.PaymentID,
			ChangedAt:   now,
		},
	})
}
