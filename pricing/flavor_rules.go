// Package pricing implements the order-composition core: flavor rule
// resolution, surcharge calculation, and the cart a storefront session
// mutates. Everything here is pure computation over catalog snapshots; no
// database or HTTP dependencies.
package pricing

import (
	"fmt"

	"github.com/jjdimalanta/mangan-app/models"
)

// Rule is the resolved flavor rule a selection is validated against.
// TotalUnits pieces must be assigned in groups of UnitsPerFlavor pieces per
// flavor; a valid purchase selects between MinFlavors and MaxFlavors distinct
// flavors summing exactly to TotalUnits.
type Rule struct {
	TotalUnits     int    `json:"total_units"`
	UnitsPerFlavor int    `json:"units_per_flavor"`
	MinFlavors     int    `json:"min_flavors"`
	MaxFlavors     int    `json:"max_flavors"`
	Policy         string `json:"pricing_policy"`
}

// DefaultRule is the fallback for flavored products without an explicit rule:
// 6 pieces, 3 per flavor, up to 2 flavors, at least 1.
func DefaultRule() Rule {
	return Rule{TotalUnits: 6, UnitsPerFlavor: 3, MinFlavors: 1, MaxFlavors: 2, Policy: models.PolicyPerSlot}
}

// SingleSelectRule covers single-unit products (a rib slab choosing one
// sauce): exactly one flavor, one piece.
func SingleSelectRule() Rule {
	return Rule{TotalUnits: 1, UnitsPerFlavor: 1, MinFlavors: 1, MaxFlavors: 1, Policy: models.PolicyPerSlot}
}

// Resolve produces the rule for a product, applying defaults when the catalog
// carries no explicit rule and normalizing a stored one.
func Resolve(p *models.Product) Rule {
	if p == nil || p.FlavorRule == nil {
		return DefaultRule()
	}
	stored := p.FlavorRule
	rule := Rule{
		TotalUnits:     stored.TotalUnits,
		UnitsPerFlavor: stored.UnitsPerFlavor,
		MinFlavors:     stored.MinFlavors,
		MaxFlavors:     stored.MaxFlavors,
		Policy:         stored.PricingPolicy,
	}
	return normalize(rule)
}

// normalize repairs a stored rule so the arithmetic below is always safe.
func normalize(r Rule) Rule {
	if r.TotalUnits <= 0 {
		return DefaultRule()
	}
	if r.TotalUnits == 1 {
		single := SingleSelectRule()
		if r.Policy != "" {
			single.Policy = r.Policy
		}
		return single
	}
	if r.UnitsPerFlavor <= 0 {
		r.UnitsPerFlavor = 1
	}
	if r.UnitsPerFlavor > r.TotalUnits {
		r.UnitsPerFlavor = r.TotalUnits
	}
	if r.MaxFlavors <= 0 {
		r.MaxFlavors = r.Slots()
	}
	if r.MinFlavors < 1 {
		r.MinFlavors = 1
	}
	if r.MinFlavors > r.MaxFlavors {
		r.MinFlavors = r.MaxFlavors
	}
	if r.Policy == "" {
		r.Policy = models.PolicyPerSlot
	}
	return r
}

// Slots is the number of flavor slots the rule exposes,
// ceil(TotalUnits / UnitsPerFlavor).
func (r Rule) Slots() int {
	return (r.TotalUnits + r.UnitsPerFlavor - 1) / r.UnitsPerFlavor
}

// SingleSelect reports whether the product picks exactly one flavor for one
// unit, which the storefront renders as a radio list instead of steppers.
func (r Rule) SingleSelect() bool {
	return r.TotalUnits == 1
}

// Selection maps flavor id to the number of pieces assigned to it.
type Selection map[uint]int

// TotalPieces sums all assigned pieces.
func (s Selection) TotalPieces() int {
	total := 0
	for _, qty := range s {
		total += qty
	}
	return total
}

// DistinctFlavors counts flavors with at least one piece.
func (s Selection) DistinctFlavors() int {
	n := 0
	for _, qty := range s {
		if qty > 0 {
			n++
		}
	}
	return n
}

// Validate checks the structural invariants of a partial selection: every
// quantity is a non-negative multiple of UnitsPerFlavor, the sum never
// exceeds TotalUnits and the distinct count never exceeds MaxFlavors.
func (r Rule) Validate(sel Selection) error {
	for id, qty := range sel {
		if qty < 0 {
			return fmt.Errorf("flavor %d: quantity must not be negative", id)
		}
		if qty%r.UnitsPerFlavor != 0 {
			return fmt.Errorf("flavor %d: quantity must change in steps of %d pieces", id, r.UnitsPerFlavor)
		}
	}
	if total := sel.TotalPieces(); total > r.TotalUnits {
		return fmt.Errorf("selection holds %d pieces but the product allows %d", total, r.TotalUnits)
	}
	if distinct := sel.DistinctFlavors(); distinct > r.MaxFlavors {
		return fmt.Errorf("selection uses %d flavors but at most %d are allowed", distinct, r.MaxFlavors)
	}
	return nil
}

// IsComplete reports whether the selection can be confirmed: structurally
// valid, every piece assigned, and the distinct-flavor floor met.
func (r Rule) IsComplete(sel Selection) bool {
	if r.Validate(sel) != nil {
		return false
	}
	return sel.TotalPieces() == r.TotalUnits && sel.DistinctFlavors() >= r.MinFlavors
}
