package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openbillingstore/billing-core/internal/gateway"
	"github.com/openbillingstore/billing-core/pkg/redis"
)

const (
	journalScope      = "payments"
	defaultJournalTTL = 24 * time.Hour
)

// Journal keeps successful provider responses keyed by the tenant-scoped
// idempotency key until the matching payment row is committed.
type Journal struct {
	store redis.JournalStore
	ttl   time.Duration
}

// NewJournal returns a journal backed by store. A nil store disables it.
func NewJournal(store redis.JournalStore, ttl time.Duration) *Journal {
	if ttl <= 0 {
		ttl = defaultJournalTTL
	}
	return &Journal{store: store, ttl: ttl}
}

type journalEntry struct {
	RequestHash string           `json:"request_hash"`
	Response    gateway.Response `json:"response"`
}

// Load returns the journaled response for key, or nil when none exists. An
// entry recorded for a different request hash is an IDEMPOTENCY_KEY_REUSED
// error.
func (j *Journal) Load(ctx context.Context, key, requestHash string) (*gateway.Response, error) {
	if j == nil || j.store == nil || key == "" {
		return nil, nil
	}
	raw, err := j.store.Get(ctx, j.store.JournalKey(journalScope, key))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var entry journalEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	if entry.RequestHash != requestHash {
		return nil, errKeyReused()
	}
	if !entry.Response.Success {
		return nil, nil
	}
	return &entry.Response, nil
}

func (j *Journal) Record(ctx context.Context, key, requestHash string, resp gateway.Response) error {
	if j == nil || j.store == nil || key == "" {
		return nil
	}
	payload, err := json.Marshal(journalEntry{RequestHash: requestHash, Response: resp})
	if err != nil {
		return err
	}
	return j.store.Set(ctx, j.store.JournalKey(journalScope, key), string(payload), j.ttl)
}

func (j *Journal) Clear(ctx context.Context, key string) error {
	if j == nil || j.store == nil || key == "" {
		return nil
	}
	return j.store.Del(ctx, j.store.JournalKey(journalScope, key))
}
