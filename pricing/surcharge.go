package pricing

import (
	"sort"

	"github.com/jjdimalanta/mangan-app/models"
)

// Surcharge computes the total flavor surcharge for a selection under the
// rule's pricing policy. Pure function of the selection and the flavor
// catalog; always non-negative.
func Surcharge(rule Rule, sel Selection, flavors map[uint]models.Flavor) float64 {
	total := 0.0
	for _, lf := range FlavorContributions(rule, sel, flavors) {
		total += lf.Surcharge
	}
	return total
}

// FlavorContributions resolves each selected flavor into its line entry with
// the surcharge share the policy assigns to it. Results are ordered by flavor
// id so repeated pricing runs are deterministic.
func FlavorContributions(rule Rule, sel Selection, flavors map[uint]models.Flavor) []LineFlavor {
	ids := make([]uint, 0, len(sel))
	for id, qty := range sel {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]LineFlavor, 0, len(ids))
	for _, id := range ids {
		flavor, ok := flavors[id]
		qty := sel[id]
		lf := LineFlavor{FlavorID: id, Quantity: qty}
		if ok {
			lf.Name = flavor.Name
			lf.Surcharge = contribution(rule, &flavor, qty)
		}
		out = append(out, lf)
	}
	return out
}

// contribution prices a single flavor's share under the rule's policy.
func contribution(rule Rule, flavor *models.Flavor, qty int) float64 {
	if !flavor.Surchargeable() || flavor.Surcharge <= 0 || qty <= 0 {
		return 0
	}
	switch rule.Policy {
	case models.PolicyPerDistinct:
		// Charged once per distinct flavor regardless of pieces covered.
		return flavor.Surcharge
	case models.PolicyPerUnitRatio:
		// Historical variant: raw piece ratio, no whole-slot guard.
		return flavor.Surcharge * float64(qty) / float64(rule.UnitsPerFlavor)
	default:
		// per_slot: once per whole slot the flavor occupies.
		return flavor.Surcharge * float64(qty/rule.UnitsPerFlavor)
	}
}
