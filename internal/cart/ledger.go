// Package cart implements the shopper's cart: an ordered product -> quantity ledger
// persisted as JSON in a Slot.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// Item is one cart line. Name, price and image are copied from the product when
// the line is first added.
type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// Subtotal is price x quantity.
func (it Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Ledger is not safe for concurrent use; callers serialise access per cart.
type Ledger struct {
	slot  Slot
	items []Item
}

// Open loads the ledger held in slot. A slot holding something that does not decode
// as a cart is cleared and the ledger starts empty. Only slot I/O errors are returned.
func Open(ctx context.Context, slot Slot) (*Ledger, error) {
	l := &Ledger{slot: slot, items: make([]Item, 0)}
	raw, err := slot.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(raw) == 0 {
		return l, nil
	}
	items, ok := decode(raw)
	if !ok {
		if err := slot.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clear corrupt cart: %w", err)
		}
		return l, nil
	}
	l.items = items
	return l, nil
}

func decode(raw []byte) ([]Item, bool) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 || it.Price < 0 || seen[it.ProductID] {
			return nil, false
		}
		seen[it.ProductID] = true
	}
	if items == nil {
		items = make([]Item, 0)
	}
	return items, true
}

func (l *Ledger) save(ctx context.Context) error {
	raw, err := json.Marshal(l.items)
	if err != nil {
		return err
	}
	return l.slot.Store(ctx, raw)
}

func (l *Ledger) index(productID string) int {
	return slices.IndexFunc(l.items, func(it Item) bool { return it.ProductID == productID })
}

// Add puts qty units of p in the cart, incrementing an existing line. The resulting
// quantity is clamped to [1, p.Stock]; a product with no stock is refused.
func (l *Ledger) Add(ctx context.Context, p domain.Product, qty int) error {
	if p.Stock < 1 {
		return fmt.Errorf("%s: %w", p.Name, domain.ErrInsufficientStock)
	}
	qty = max(qty, 1)
	if i := l.index(p.ID); i >= 0 {
		l.items[i].Quantity = min(l.items[i].Quantity+qty, p.Stock)
	} else {
		l.items = append(l.items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Quantity:  min(qty, p.Stock),
		})
	}
	return l.save(ctx)
}

// SetQuantity sets the line's quantity, clamped to at least 1.
func (l *Ledger) SetQuantity(ctx context.Context, productID string, n int) error {
	i := l.index(productID)
	if i < 0 {
		return domain.ErrNotFound
	}
	l.items[i].Quantity = max(n, 1)
	return l.save(ctx)
}

func (l *Ledger) Remove(ctx context.Context, productID string) error {
	i := l.index(productID)
	if i < 0 {
		return domain.ErrNotFound
	}
	l.items = slices.Delete(l.items, i, i+1)
	return l.save(ctx)
}

// Clear empties the ledger and its slot.
func (l *Ledger) Clear(ctx context.Context) error {
	l.items = l.items[:0]
	return l.slot.Clear(ctx)
}

// Items returns a copy of the lines in insertion order.
func (l *Ledger) Items() []Item { return slices.Clone(l.items) }

func (l *Ledger) Len() int { return len(l.items) }

// Total is the sum of price x quantity over all lines.
func (l *Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range l.items {
		total = total.Add(it.Subtotal())
	}
	return total
}
