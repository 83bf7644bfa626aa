package inventory

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound  = errors.New("inventory item not found")
	ErrOutOfStock    = errors.New("item is out of stock")
	ErrDuplicateItem = errors.New("inventory item already exists")
	ErrInvalidItem   = errors.New("invalid inventory item")
)

// Item is one bar product. OriginalStock is captured when the item is added
// and never changes afterwards.
type Item struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	OriginalStock int             `json:"original_stock"`
}

// SeedItem is the shape of entries in an inventory seed file.
type SeedItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}
