// Package dbtest opens throwaway sqlite databases shaped like the goose schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// schema mirrors pkg/migrate/migrations with sqlite column types. Decimals are
// kept as TEXT so shopspring/decimal round-trips them without float drift.
var schema = []string{
	`CREATE TABLE services (
		service_id TEXT PRIMARY KEY,
		service_name TEXT NOT NULL,
		description TEXT,
		api_key TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		email TEXT NOT NULL,
		first_name TEXT,
		last_name TEXT,
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'USER',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (user_id, service_id)
	)`,
	`CREATE TABLE products (
		product_id TEXT PRIMARY KEY,
		service_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		type TEXT NOT NULL,
		billing_interval TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE countries (
		code TEXT PRIMARY KEY,
		country_name TEXT NOT NULL,
		state_code TEXT,
		state_name TEXT,
		currency_code TEXT NOT NULL,
		tax_rate TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_prices_by_country (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		country_code TEXT NOT NULL,
		country_name TEXT NOT NULL,
		price TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		discount_percentage TEXT,
		discounted_price TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		effective_from DATETIME NOT NULL,
		effective_to DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_sequences (
		id INTEGER PRIMARY KEY AUTOINCREMENT
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		service_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		subscription_id TEXT,
		country_code TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		product_price TEXT NOT NULL,
		tax_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		coupon_number TEXT,
		status TEXT NOT NULL DEFAULT 'PENDING',
		type TEXT NOT NULL,
		due_date DATETIME,
		paid_at DATETIME,
		billing_address TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		first_order_id TEXT,
		latest_order_id TEXT,
		subscription_plan TEXT NOT NULL,
		billing_cycle TEXT NOT NULL,
		external_subscription_id TEXT UNIQUE,
		payment_gateway TEXT NOT NULL,
		status TEXT NOT NULL,
		start_date DATETIME NOT NULL,
		end_date DATETIME,
		next_billing_date DATETIME NOT NULL,
		trial_end_date DATETIME,
		cancelled_at DATETIME,
		cancel_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL UNIQUE,
		order_id TEXT,
		subscription_id TEXT,
		user_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		method TEXT,
		status TEXT NOT NULL,
		type TEXT NOT NULL,
		external_transaction_id TEXT,
		external_subscription_id TEXT,
		payment_gateway TEXT NOT NULL,
		failure_reason TEXT,
		idempotency_key TEXT,
		request_hash TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		processed_at DATETIME,
		reconciled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX ix_payments_external_subscription_id ON payments (external_subscription_id)`,
	`CREATE INDEX ix_payments_status_created_at ON payments (status, created_at)`,
	`CREATE UNIQUE INDEX ux_payments_user_idempotency ON payments (user_id, idempotency_key)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns an isolated in-memory database with every billing table created.
// The pool is pinned to one connection so concurrent tests serialize on sqlite's
// single writer instead of failing with "database is locked".
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
