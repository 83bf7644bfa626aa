package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"loungebackend/internal/logger"
)

// Service is the bar inventory catalog shared by every guest row. All
// mutations are serialized by one mutex so decrement/increment pairs from
// different guests never race past the floor or the original stock.
type Service struct {
	items map[string]*Item
	order []string // insertion order, used for index-based removal

	onChange func([]Item)
	notifyMu sync.Mutex

	lastLoaded time.Time
	mutex      sync.RWMutex
}

type Option func(*Service)

// WithChangeHook registers fn to receive a copy of the catalog after every
// mutation. fn runs after the catalog lock is released.
func WithChangeHook(fn func([]Item)) Option {
	return func(s *Service) { s.onChange = fn }
}

func NewService(opts ...Option) *Service {
	s := &Service{items: make(map[string]*Item)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore replaces the catalog contents without firing the change hook.
// Entries with an empty or duplicate name are dropped.
func (s *Service) Restore(items []Item) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items = make(map[string]*Item, len(items))
	s.order = s.order[:0]
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		if _, exists := s.items[name]; exists {
			logger.LogWarn("Dropping duplicate inventory item on restore: %s", name)
			continue
		}
		item := it
		item.Name = name
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		if item.OriginalStock < item.Quantity {
			item.OriginalStock = item.Quantity
		}
		s.items[name] = &item
		s.order = append(s.order, name)
	}
	s.lastLoaded = time.Now()
}

// LoadSeedFile loads a JSON list of {name, price, quantity} entries into an
// empty catalog.
func (s *Service) LoadSeedFile(path string) error {
	logger.LogInfo("Loading inventory seed from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read inventory seed: %w", err)
	}

	var seed []SeedItem
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse inventory seed: %w", err)
	}

	items := make([]Item, 0, len(seed))
	for _, it := range seed {
		items = append(items, Item{
			Name:          it.Name,
			Price:         decimal.NewFromFloat(it.Price),
			Quantity:      it.Quantity,
			OriginalStock: it.Quantity,
		})
	}
	s.Restore(items)
	s.notify()

	logger.LogInfo("Successfully loaded inventory seed: %d items", len(items))
	return nil
}

// =============================================================================
// CATALOG ADMINISTRATION
// =============================================================================

// Add appends a new item. The name must be unique once trimmed; price and
// quantity must both be positive.
func (s *Service) Add(item Item) error {
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if !item.Price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than zero", ErrInvalidItem)
	}
	if item.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidItem)
	}

	s.mutex.Lock()
	if _, exists := s.items[name]; exists {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateItem, name)
	}
	s.items[name] = &Item{
		Name:          name,
		Price:         item.Price,
		Quantity:      item.Quantity,
		OriginalStock: item.Quantity,
	}
	s.order = append(s.order, name)
	s.mutex.Unlock()

	logger.LogInfo("Inventory item added: %s (price %s, qty %d)", name, item.Price.StringFixed(2), item.Quantity)
	s.notify()
	return nil
}

// Remove deletes the named item.
func (s *Service) Remove(name string) error {
	s.mutex.Lock()
	if _, exists := s.items[name]; !exists {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mutex.Unlock()

	logger.LogInfo("Inventory item removed: %s", name)
	s.notify()
	return nil
}

// RemoveAt deletes the item at position index of List.
func (s *Service) RemoveAt(index int) error {
	s.mutex.RLock()
	if index < 0 || index >= len(s.order) {
		s.mutex.RUnlock()
		return fmt.Errorf("%w: index %d", ErrItemNotFound, index)
	}
	name := s.order[index]
	s.mutex.RUnlock()

	return s.Remove(name)
}

// SetPrice changes the unit price. Bar tabs are priced at the current catalog
// price, so this retroactively changes every open tab holding the item.
func (s *Service) SetPrice(name string, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}

	s.mutex.Lock()
	item, exists := s.items[name]
	if !exists {
		s.mutex.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	old := item.Price
	item.Price = price
	s.mutex.Unlock()

	logger.LogInfo("Inventory price changed: %s %s -> %s", name, old.StringFixed(2), price.StringFixed(2))
	s.notify()
	return nil
}

// =============================================================================
// STOCK MOVEMENT
// =============================================================================

// Decrement takes n units out of stock and returns the remaining quantity.
// An item with nothing left is rejected with ErrOutOfStock; otherwise the
// quantity is clamped at zero.
func (s *Service) Decrement(name string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: decrement by %d", ErrInvalidItem, n)
	}

	s.mutex.Lock()
	item, exists := s.items[name]
	if !exists {
		s.mutex.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	if item.Quantity <= 0 {
		s.mutex.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrOutOfStock, name)
	}
	item.Quantity -= n
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	remaining := item.Quantity
	s.mutex.Unlock()

	s.notify()
	return remaining, nil
}

// Increment puts n units back and returns the new quantity. The quantity
// never exceeds the item's original stock.
func (s *Service) Increment(name string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: increment by %d", ErrInvalidItem, n)
	}

	s.mutex.Lock()
	item, exists := s.items[name]
	if !exists {
		s.mutex.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrItemNotFound, name)
	}
	item.Quantity += n
	if item.Quantity > item.OriginalStock {
		item.Quantity = item.OriginalStock
	}
	quantity := item.Quantity
	s.mutex.Unlock()

	s.notify()
	return quantity, nil
}

// =============================================================================
// INFORMATIONAL METHODS
// =============================================================================

// List returns a copy of every item in insertion order.
func (s *Service) List() []Item {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.listLocked()
}

// Get returns a copy of the named item.
func (s *Service) Get(name string) (Item, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, exists := s.items[name]
	if !exists {
		return Item{}, false
	}
	return *item, true
}

// Prices returns the current price list, read under one lock so a caller
// pricing several lines sees a single consistent snapshot.
func (s *Service) Prices() map[string]decimal.Decimal {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	prices := make(map[string]decimal.Decimal, len(s.items))
	for name, item := range s.items {
		prices[name] = item.Price
	}
	return prices
}

// GetStats returns inventory statistics for debugging/monitoring
func (s *Service) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	outOfStock := 0
	for _, item := range s.items {
		if item.Quantity == 0 {
			outOfStock++
		}
	}

	return map[string]interface{}{
		"items_count":  len(s.items),
		"out_of_stock": outOfStock,
		"last_loaded":  s.lastLoaded,
	}
}

func (s *Service) listLocked() []Item {
	out := make([]Item, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.items[name])
	}
	return out
}

func (s *Service) notify() {
	if s.onChange == nil {
		return
	}
	// The snapshot is taken inside notifyMu so the last hook call always
	// carries the latest state.
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.onChange(s.List())
}
