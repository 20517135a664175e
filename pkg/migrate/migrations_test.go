package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbillingstore/billing-core/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestTenantMigrationScopesUsersByService(t *testing.T) {
	content := readMigration(t, "create_tenants_and_catalog")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS services",
		"CONSTRAINT ux_users_user_service UNIQUE (user_id, service_id)",
		"FOREIGN KEY (service_id) REFERENCES services(service_id) ON DELETE CASCADE",
		"tax_rate      numeric(5,4)",
		"DROP TABLE IF EXISTS services",
	} {
		require.Contains(t, content, sub)
	}
}

func TestOrdersMigrationKeepsSnapshotColumns(t *testing.T) {
	content := readMigration(t, "create_orders_and_subscriptions")
	for _, sub := range []string{
		"order_number    text NOT NULL UNIQUE",
		"total_amount    numeric(12,2) NOT NULL CHECK (total_amount >= 0)",
		"GENERATED BY DEFAULT AS IDENTITY",
		"external_subscription_id text UNIQUE",
		"WHERE status IN ('PENDING', 'CONFIRMED')",
	} {
		require.Contains(t, content, sub)
	}
}

func TestPaymentsMigrationEnforcesIdempotency(t *testing.T) {
	content := readMigration(t, "create_payments")
	require.Contains(t, content, "payment_id               text NOT NULL UNIQUE")
	require.Contains(t, content, "idempotency_key          text UNIQUE")
	require.Contains(t, content, "CHECK (payment_gateway IN ('STRIPE', 'PAYPAL', 'SQUARE'))")
	require.Contains(t, content, "DROP TABLE IF EXISTS payments")
}

func TestOutboxMigrationDeclaresEveryEventType(t *testing.T) {
	content := readMigration(t, "create_outbox")
	for _, eventType := range []string{
		"order_created",
		"order_status_changed",
		"payment_created",
		"payment_status_changed",
		"subscription_created",
		"subscription_status_changed",
	} {
		require.Contains(t, content, "'"+eventType+"'")
	}
	require.True(t, strings.Index(content, "-- +goose StatementBegin") < strings.Index(content, "CREATE TYPE aggregate_type_enum"))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, " Add Refund Reason! ")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_refund_reason.sql"), path)
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.ValidateEmbedded())
}

func TestScopePaymentIdempotencyMigration(t *testing.T) {
	content := readMigration(t, "scope_payment_idempotency")
	require.Contains(t, content, "DROP CONSTRAINT IF EXISTS payments_idempotency_key_key")
	require.Contains(t, content, "ux_payments_user_idempotency ON payments (user_id, idempotency_key)")
	require.Contains(t, content, "ADD COLUMN IF NOT EXISTS request_hash")
	require.Contains(t, content, "ADD COLUMN IF NOT EXISTS reconciled_at")
}

func TestCreateSQLMigrationOrdersAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	existing := "-- +goose Up\nSELECT 1;\n\n-- +goose Down\nSELECT 1;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "29991231235959_future.sql"), []byte(existing), 0o644))

	path, err := migrate.CreateSQLMigration(dir, "add ledger")
	require.NoError(t, err)
	require.Equal(t, "29991231235960_add_ledger.sql", filepath.Base(path))
	require.NoError(t, migrate.ValidateDir(dir))
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20250101000000_down_first.sql": "-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;\n",
		"20250101000001_unbalanced.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"bad-name.sql":                  "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}

	err := migrate.ValidateDir(dir)
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "declares Down before Up")
	require.Contains(t, msg, "1 StatementBegin and 0 StatementEnd")
	require.Contains(t, msg, `invalid migration filename "bad-name.sql"`)
}
