package data

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"loungebackend/internal/billing"
	"loungebackend/internal/inventory"
	"loungebackend/internal/ledger"
	"loungebackend/internal/logger"
)

// Stable snapshot keys, one per collection.
const (
	KeyGuests    = "guests"
	KeyInventory = "inventory"
	KeyHistory   = "history"
	KeyIncome    = "income"
)

const snapshotTimeout = 5 * time.Second

// Snapshotter maps the venue's collections onto a Store. Loads never fail:
// a missing or unreadable collection comes back empty. Saves are best
// effort and only logged on failure.
type Snapshotter struct {
	store Store
}

func NewSnapshotter(store Store) *Snapshotter {
	return &Snapshotter{store: store}
}

func (s *Snapshotter) LoadGuests(ctx context.Context) []billing.GuestRecord {
	return load(ctx, s.store, KeyGuests, []billing.GuestRecord{})
}

func (s *Snapshotter) LoadInventory(ctx context.Context) []inventory.Item {
	return load(ctx, s.store, KeyInventory, []inventory.Item{})
}

func (s *Snapshotter) LoadHistory(ctx context.Context) []ledger.Entry {
	return load(ctx, s.store, KeyHistory, []ledger.Entry{})
}

func (s *Snapshotter) LoadIncome(ctx context.Context) ledger.Income {
	return load(ctx, s.store, KeyIncome, ledger.Income{})
}

func (s *Snapshotter) SaveGuests(records []billing.GuestRecord) {
	s.save(KeyGuests, records)
}

func (s *Snapshotter) SaveInventory(items []inventory.Item) {
	s.save(KeyInventory, items)
}

func (s *Snapshotter) SaveHistory(entries []ledger.Entry) {
	s.save(KeyHistory, entries)
}

func (s *Snapshotter) SaveIncome(income ledger.Income) {
	s.save(KeyIncome, income)
}

func (s *Snapshotter) save(key string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.LogError("Failed to encode %s snapshot: %v", key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := s.store.Put(ctx, key, payload); err != nil {
		logger.LogError("Failed to save %s snapshot: %v", key, err)
		return
	}
	logger.LogDebug("Saved %s snapshot (%d bytes)", key, len(payload))
}

func load[T any](ctx context.Context, store Store, key string, def T) T {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	raw, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def
	}
	if err != nil {
		logger.LogWarn("Could not read %s snapshot, starting empty: %v", key, err)
		return def
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.LogWarn("Corrupt %s snapshot, starting empty: %v", key, err)
		return def
	}
	return out
}
