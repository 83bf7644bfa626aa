package billing

import (
	"errors"

	"loungebackend/internal/inventory"
	"loungebackend/internal/logger"
)

// AddBarItem sells one unit of item to the guest. Stock is taken first; if
// the item is out of stock nothing changes.
func (e *Engine) AddBarItem(number int, item string) ([]TabLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return nil, err
	}

	if _, err := e.catalog.Decrement(item, 1); err != nil {
		logger.LogWarn("Guest %d: cannot add %q: %v", number, item, err)
		return nil, err
	}

	added := false
	for i := range g.tab {
		if g.tab[i].Item == item {
			g.tab[i].Count++
			added = true
			break
		}
	}
	if !added {
		g.tab = append(g.tab, TabLine{Item: item, Count: 1})
	}

	return copyTab(g.tab), nil
}

// RemoveLastBarItem takes one unit off the most recently added line of the
// guest's tab and returns it to stock. The line is dropped at zero.
func (e *Engine) RemoveLastBarItem(number int) ([]TabLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return nil, err
	}
	if len(g.tab) == 0 {
		logger.LogWarn("Guest %d: remove on empty bar tab", number)
		return nil, ErrEmptyTab
	}

	last := len(g.tab) - 1
	item := g.tab[last].Item
	g.tab[last].Count--
	if g.tab[last].Count == 0 {
		g.tab = g.tab[:last]
	}

	// Restock is clamped at the item's original stock. An item deleted from
	// the catalog since the sale simply is not restocked.
	if _, err := e.catalog.Increment(item, 1); err != nil {
		if !errors.Is(err, inventory.ErrItemNotFound) {
			logger.LogError("Guest %d: restock of %q failed: %v", number, item, err)
		} else {
			logger.LogWarn("Guest %d: %q no longer in inventory, not restocked", number, item)
		}
	}

	return copyTab(g.tab), nil
}

// Tab returns the guest's bar tab in insertion order.
func (e *Engine) Tab(number int) ([]TabLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, err := e.guestLocked(number)
	if err != nil {
		return nil, err
	}
	return copyTab(g.tab), nil
}

func copyTab(tab []TabLine) []TabLine {
	return append([]TabLine{}, tab...)
}
