package pricing

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/jjdimalanta/mangan-app/models"
)

// ErrSelectionIncomplete blocks confirmation of a flavored line until the
// selection assigns every piece and meets the distinct-flavor floor.
var ErrSelectionIncomplete = errors.New("flavor selection is incomplete")

// ProductSnapshot freezes the catalog fields a cart line needs. Catalog edits
// after the add do not reprice lines already in the cart.
type ProductSnapshot struct {
	ProductID   uint    `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	ProductType string  `json:"product_type"`
}

// SnapshotOf builds a line snapshot from a catalog product.
func SnapshotOf(p *models.Product) ProductSnapshot {
	return ProductSnapshot{
		ProductID:   p.ID,
		Name:        p.Name,
		Price:       p.Price,
		ProductType: p.ProductType,
	}
}

// LineFlavor is one flavor on a cart line. Surcharge holds the resolved
// contribution for this line under the product's pricing policy, not the raw
// per-flavor rate.
type LineFlavor struct {
	FlavorID  uint    `json:"id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Surcharge float64 `json:"surcharge"`
}

// LineItem is one cart entry: a product configuration and its quantity.
type LineItem struct {
	ID        string          `json:"id"`
	Product   ProductSnapshot `json:"product"`
	Quantity  int             `json:"quantity"`
	Flavors   []LineFlavor    `json:"flavors"`
	LineTotal float64         `json:"line_total"`
}

// FlavorSurcharge sums the resolved per-line flavor contributions.
func (li *LineItem) FlavorSurcharge() float64 {
	total := 0.0
	for _, lf := range li.Flavors {
		total += lf.Surcharge
	}
	return total
}

// recompute derives LineTotal from quantity and unit pricing. The flavor
// surcharge scales with line quantity: the surcharge is part of the line's
// unit price, so quantity 1 gives base + surcharge and every later quantity
// change stays consistent with that.
func (li *LineItem) recompute() {
	li.LineTotal = float64(li.Quantity) * (li.Product.Price + li.FlavorSurcharge())
}

// Cart is an ordered sequence of line items; insertion order is display
// order. A cart belongs to one customer session; there are no concurrent
// writers.
type Cart struct {
	Lines []LineItem `json:"lines"`
}

// AddSimple adds one unit of a flavorless product. An existing flavorless
// line for the same product absorbs the unit; otherwise a new line starts at
// quantity 1.
func (c *Cart) AddSimple(p ProductSnapshot) *LineItem {
	for i := range c.Lines {
		line := &c.Lines[i]
		if line.Product.ProductID == p.ProductID && len(line.Flavors) == 0 {
			line.Quantity++
			line.recompute()
			return line
		}
	}
	line := LineItem{
		ID:       uuid.NewString(),
		Product:  p,
		Quantity: 1,
	}
	line.recompute()
	c.Lines = append(c.Lines, line)
	return &c.Lines[len(c.Lines)-1]
}

// AddFlavored adds a configured flavored product. Flavored lines are never
// merged: every confirmation is its own line at quantity 1.
func (c *Cart) AddFlavored(p ProductSnapshot, flavors []LineFlavor) *LineItem {
	line := LineItem{
		ID:       uuid.NewString(),
		Product:  p,
		Quantity: 1,
		Flavors:  flavors,
	}
	line.recompute()
	c.Lines = append(c.Lines, line)
	return &c.Lines[len(c.Lines)-1]
}

// ComposeFlavored validates a selection against the rule and resolves it into
// line flavors ready for AddFlavored. Incomplete selections are rejected.
func ComposeFlavored(rule Rule, sel Selection, flavors map[uint]models.Flavor) ([]LineFlavor, error) {
	if err := rule.Validate(sel); err != nil {
		return nil, err
	}
	if !rule.IsComplete(sel) {
		return nil, ErrSelectionIncomplete
	}
	return FlavorContributions(rule, sel, flavors), nil
}

// UpdateQuantity applies a quantity delta to a line. A result at or below
// zero removes the line. Returns false when no line carries the id.
func (c *Cart) UpdateQuantity(lineID string, delta int) bool {
	for i := range c.Lines {
		line := &c.Lines[i]
		if line.ID != lineID {
			continue
		}
		newQuantity := line.Quantity + delta
		if newQuantity <= 0 {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
		line.Quantity = newQuantity
		line.recompute()
		return true
	}
	return false
}

// Remove deletes a line unconditionally. Returns false when absent.
func (c *Cart) Remove(lineID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the line with the given id, or nil.
func (c *Cart) Find(lineID string) *LineItem {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Clear empties the cart. The caller owns clearing any persisted snapshot.
func (c *Cart) Clear() {
	c.Lines = nil
}

// Subtotal derives the cart total from its lines. Pure derivation; calling it
// twice without a mutation yields the same value.
func (c *Cart) Subtotal() float64 {
	total := 0.0
	for i := range c.Lines {
		total += c.Lines[i].LineTotal
	}
	return total
}

// ItemCount sums line quantities.
func (c *Cart) ItemCount() int {
	count := 0
	for i := range c.Lines {
		count += c.Lines[i].Quantity
	}
	return count
}

// EncodeSnapshot serializes the cart for the session store.
func EncodeSnapshot(c *Cart) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSnapshot restores a cart from a stored snapshot. An empty snapshot
// yields an empty cart.
func DecodeSnapshot(snapshot string) (*Cart, error) {
	cart := &Cart{}
	if snapshot == "" {
		return cart, nil
	}
	if err := json.Unmarshal([]byte(snapshot), cart); err != nil {
		return nil, err
	}
	return cart, nil
}
