package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/openbillingstore/billing-core/internal/orders"
	"github.com/openbillingstore/billing-core/pkg/db/models"
	"github.com/openbillingstore/billing-core/pkg/enums"
	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/outbox"
	"github.com/openbillingstore/billing-core/pkg/outbox/payloads"
)

const (
	OrderTTLJobName = "order-ttl"

	defaultOverdueBatch = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderTTLJobParams configure the overdue order job.
type OrderTTLJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Outbox    outboxEmitter
	BatchSize int
	Now       func() time.Time
}

// NewOrderTTLJob builds the job that cancels unpaid orders past their due date.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOverdueBatch
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderTTLJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.Orders,
		outbox: params.Outbox,
		batch:  batch,
		now:    now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	outbox outboxEmitter
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return OrderTTLJobName }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	overdue, err := j.orders.ListOverdue(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query overdue orders: %w", err)
	}
	var errs error
	count := 0
	for _, order := range overdue {
		if err := j.expireOrder(ctx, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.OrderNumber, err))
			continue
		}
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "candidates": len(overdue)})
	j.logg.Info(logCtx, "overdue order loop complete")
	return errs
}

func (j *orderTTLJob) expireOrder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.OrderStatusPending && current.Status != enums.OrderStatusConfirmed {
			return nil
		}
		if err := repo.UpdateStatus(ctx, current.ID, enums.OrderStatusCancelled, nil); err != nil {
			return err
		}
		now := j.now().UTC()
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   current.ID,
			OccurredAt:    now,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     current.ID,
				OrderNumber: current.OrderNumber,
				From:        current.Status,
				To:          enums.OrderStatusCancelled,
				ChangedAt:   now,
			},
		})
	})
}
