package lot

import (
	"sort"
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// SelectorType identifies a lot selection strategy
type SelectorType string

const (
	// SelectorTypeFIFO selects oldest manufacturing date first
	SelectorTypeFIFO SelectorType = "FIFO"
	// SelectorTypeFEFO selects earliest expiry first, falling back to FIFO order
	SelectorTypeFEFO SelectorType = "FEFO"
)

// IsValid checks if the selector type is valid
func (t SelectorType) IsValid() bool {
	switch t {
	case SelectorTypeFIFO, SelectorTypeFEFO:
		return true
	}
	return false
}

// String returns the string representation
func (t SelectorType) String() string {
	return string(t)
}

// SelectionOptions tunes candidate filtering
type SelectionOptions struct {
	// IncludeExpired admits expired lots into the candidate pool.
	// Used only for reporting, never for fulfillment.
	IncludeExpired bool
}

// Pick is a single entry in an allocation plan: take Quantity from Lot
type Pick struct {
	Lot      *Lot
	Quantity decimal.Decimal
}

// Plan is the ordered result of a lot selection. A plan with a shortfall
// is not an error: the caller decides whether partial fulfillment is
// acceptable.
type Plan struct {
	Picks             []Pick
	RequestedQuantity decimal.Decimal
	TotalSelected     decimal.Decimal
	Shortfall         decimal.Decimal
	FullyFulfilled    bool
}

// Selector picks lots to satisfy a requested quantity
type Selector interface {
	// Type returns the selector strategy type
	Type() SelectorType
	// SelectLots builds an ordered allocation plan from the candidate pool
	SelectLots(requestedQuantity decimal.Decimal, candidates []*Lot, opts SelectionOptions) (*Plan, error)
}

// FIFOSelector selects lots oldest-manufacturing-date-first, tie-broken by
// lot number (lexicographic) so repeated runs with identical inputs yield
// identical plans.
type FIFOSelector struct{}

// NewFIFOSelector creates a new FIFO selector
func NewFIFOSelector() *FIFOSelector {
	return &FIFOSelector{}
}

// Type returns the selector strategy type
func (s *FIFOSelector) Type() SelectorType {
	return SelectorTypeFIFO
}

// SelectLots selects lots in FIFO order (oldest manufacturing date first)
func (s *FIFOSelector) SelectLots(requestedQuantity decimal.Decimal, candidates []*Lot, opts SelectionOptions) (*Plan, error) {
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeValidation, "Requested quantity must be positive")
	}

	eligible := filterCandidates(candidates, opts)
	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].ManufacturingDate.Equal(eligible[j].ManufacturingDate) {
			return eligible[i].ManufacturingDate.Before(eligible[j].ManufacturingDate)
		}
		return eligible[i].LotNumber < eligible[j].LotNumber
	})

	return buildPlan(requestedQuantity, eligible), nil
}

// FEFOSelector selects lots closest to expiry first. Lots without an
// expiry date go last; ties fall back to FIFO order.
type FEFOSelector struct{}

// NewFEFOSelector creates a new FEFO selector
func NewFEFOSelector() *FEFOSelector {
	return &FEFOSelector{}
}

// Type returns the selector strategy type
func (s *FEFOSelector) Type() SelectorType {
	return SelectorTypeFEFO
}

// SelectLots selects lots in FEFO order (earliest expiry first)
func (s *FEFOSelector) SelectLots(requestedQuantity decimal.Decimal, candidates []*Lot, opts SelectionOptions) (*Plan, error) {
	if requestedQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeValidation, "Requested quantity must be positive")
	}

	eligible := filterCandidates(candidates, opts)
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if !a.ExpiryDate.Equal(*b.ExpiryDate) {
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		case a.ExpiryDate != nil:
			return true // expiring stock goes out first
		case b.ExpiryDate != nil:
			return false
		}
		if !a.ManufacturingDate.Equal(b.ManufacturingDate) {
			return a.ManufacturingDate.Before(b.ManufacturingDate)
		}
		return a.LotNumber < b.LotNumber
	})

	return buildPlan(requestedQuantity, eligible), nil
}

// NewSelector returns a selector by type, defaulting to FIFO
func NewSelector(selectorType SelectorType) (Selector, error) {
	switch selectorType {
	case SelectorTypeFIFO:
		return NewFIFOSelector(), nil
	case SelectorTypeFEFO:
		return NewFEFOSelector(), nil
	default:
		return nil, shared.NewDomainError(ErrCodeValidation, "Unknown lot selector type: "+selectorType.String())
	}
}

// filterCandidates keeps lots eligible for selection: ACTIVE status and
// positive available quantity, excluding expired lots unless requested.
func filterCandidates(candidates []*Lot, opts SelectionOptions) []*Lot {
	eligible := make([]*Lot, 0, len(candidates))
	for _, l := range candidates {
		if l.Status != StatusActive {
			continue
		}
		if l.AvailableQuantity().LessThanOrEqual(decimal.Zero) {
			continue
		}
		if l.IsExpired() && !opts.IncludeExpired {
			continue
		}
		eligible = append(eligible, l)
	}
	return eligible
}

// buildPlan greedily takes from the front of the sorted candidate sequence
func buildPlan(requestedQuantity decimal.Decimal, sorted []*Lot) *Plan {
	picks := make([]Pick, 0)
	remaining := requestedQuantity
	total := decimal.Zero

	for _, l := range sorted {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, l.AvailableQuantity())
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}
		picks = append(picks, Pick{Lot: l, Quantity: take})
		total = total.Add(take)
		remaining = remaining.Sub(take)
	}

	return &Plan{
		Picks:             picks,
		RequestedQuantity: requestedQuantity,
		TotalSelected:     total,
		Shortfall:         remaining,
		FullyFulfilled:    remaining.IsZero(),
	}
}

// TotalAvailable sums available quantity across selectable lots
func TotalAvailable(lots []*Lot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		if l.IsSelectable() {
			total = total.Add(l.AvailableQuantity())
		}
	}
	return total
}

// ExpiringWithin returns lots that will expire within the given window and
// still hold remaining quantity
func ExpiringWithin(lots []*Lot, window time.Duration) []*Lot {
	expiring := make([]*Lot, 0)
	for _, l := range lots {
		if l.RemainingQuantity.GreaterThan(decimal.Zero) && l.WillExpireWithin(window) {
			expiring = append(expiring, l)
		}
	}
	return expiring
}
