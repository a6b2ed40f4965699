package lot

import (
	"strings"
	"time"

	"github.com/dms/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle/quality state of a lot. Reservation is
// not a status: it is tracked via ReservedQuantity while the status stays
// ACTIVE.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusQuarantine Status = "QUARANTINE"
	StatusDamaged    Status = "DAMAGED"
	StatusConsumed   Status = "CONSUMED"
	StatusExpired    Status = "EXPIRED"
)

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known lot status
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusQuarantine, StatusDamaged, StatusConsumed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that accept no further transitions to ACTIVE
func (s Status) IsTerminal() bool {
	return s == StatusConsumed || s == StatusExpired
}

// allowedTransitions is the explicit transition table. Everything not
// listed here is rejected.
var allowedTransitions = map[Status][]Status{
	StatusActive:     {StatusQuarantine, StatusDamaged, StatusExpired, StatusConsumed},
	StatusQuarantine: {StatusActive, StatusDamaged},
}

// CanTransition reports whether from -> to is in the allowed table
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// MinAdjustmentReasonLength is the minimum length of an adjustment reason.
// Stock corrections must always be auditable.
const MinAdjustmentReasonLength = 5

// Lot represents a manufactured lot/batch of a product. It is the
// aggregate root for quantity ledger operations.
//
// Quantity invariant, enforced on every mutation:
//
//	0 <= ReservedQuantity <= RemainingQuantity <= Quantity
//
// AvailableQuantity is always derived (Remaining - Reserved) and never
// persisted as a source of truth.
type Lot struct {
	shared.TenantAggregateRoot
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_lot_product_number,priority:1;index"`
	AgencyID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_lot_product_number,priority:2;index"`
	LotNumber         string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_lot_product_number,priority:3"`
	BatchNumber       string          `gorm:"type:varchar(100)"`
	ManufacturingDate time.Time       `gorm:"not null;index"`
	ExpiryDate        *time.Time      `gorm:"index"` // nil means does-not-expire
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"` // total manufactured, immutable after creation
	RemainingQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReservedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status            Status          `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	SupplierID        *uuid.UUID      `gorm:"type:uuid"`
	SupplierLotCode   string          `gorm:"type:varchar(100)"`
	Notes             string          `gorm:"type:varchar(500)"`
	UpdatedBy         *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (Lot) TableName() string {
	return "lot_batches"
}

// CreateLotParams holds the inputs for creating a lot
type CreateLotParams struct {
	TenantID          uuid.UUID
	ProductID         uuid.UUID
	AgencyID          uuid.UUID
	LotNumber         string
	BatchNumber       string
	ManufacturingDate time.Time
	ExpiryDate        *time.Time
	Quantity          decimal.Decimal
	SupplierID        *uuid.UUID
	SupplierLotCode   string
	Notes             string
	CreatedBy         uuid.UUID
}

// NewLot creates a new active lot with the full manufactured quantity remaining
func NewLot(params CreateLotParams) (*Lot, error) {
	params.LotNumber = strings.TrimSpace(params.LotNumber)

	if params.ProductID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Product ID cannot be empty")
	}
	if params.AgencyID == uuid.Nil {
		return nil, shared.NewDomainError(ErrCodeValidation, "Agency ID cannot be empty")
	}
	if params.LotNumber == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Lot number cannot be empty")
	}
	if params.ManufacturingDate.IsZero() {
		return nil, shared.NewDomainError(ErrCodeValidation, "Manufacturing date is required")
	}
	if params.ExpiryDate != nil && !params.ExpiryDate.After(params.ManufacturingDate) {
		return nil, shared.NewDomainError(ErrCodeValidation, "Expiry date must be after manufacturing date")
	}
	if params.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(ErrCodeValidation, "Quantity must be positive")
	}

	l := &Lot{
		TenantAggregateRoot: shared.NewTenantAggregateRootWithCreator(params.TenantID, params.CreatedBy),
		ProductID:           params.ProductID,
		AgencyID:            params.AgencyID,
		LotNumber:           params.LotNumber,
		BatchNumber:         strings.TrimSpace(params.BatchNumber),
		ManufacturingDate:   params.ManufacturingDate,
		ExpiryDate:          params.ExpiryDate,
		Quantity:            params.Quantity,
		RemainingQuantity:   params.Quantity,
		ReservedQuantity:    decimal.Zero,
		Status:              StatusActive,
		SupplierID:          params.SupplierID,
		SupplierLotCode:     strings.TrimSpace(params.SupplierLotCode),
		Notes:               params.Notes,
	}

	l.AddDomainEvent(NewLotCreatedEvent(l))

	return l, nil
}

// AvailableQuantity returns the quantity eligible for new reservations
func (l *Lot) AvailableQuantity() decimal.Decimal {
	return l.RemainingQuantity.Sub(l.ReservedQuantity)
}

// ConsumedQuantity returns the quantity permanently deducted so far
func (l *Lot) ConsumedQuantity() decimal.Decimal {
	return l.Quantity.Sub(l.RemainingQuantity)
}

// IsExpired returns true if the lot's expiry date has passed
func (l *Lot) IsExpired() bool {
	if l.ExpiryDate == nil {
		return false
	}
	return l.ExpiryDate.Before(time.Now())
}

// WillExpireWithin returns true if the lot expires within the given window.
// Lots without an expiry date never expire.
func (l *Lot) WillExpireWithin(window time.Duration) bool {
	if l.ExpiryDate == nil {
		return false
	}
	return l.ExpiryDate.Before(time.Now().Add(window))
}

// DaysUntilExpiry returns the number of days until expiry, -1 if no expiry date
func (l *Lot) DaysUntilExpiry() int {
	if l.ExpiryDate == nil {
		return -1
	}
	return int(time.Until(*l.ExpiryDate).Hours() / 24)
}

// IsSelectable returns true if the lot can supply new reservations
func (l *Lot) IsSelectable() bool {
	return l.Status == StatusActive && !l.IsExpired() && l.AvailableQuantity().GreaterThan(decimal.Zero)
}

// checkInvariant verifies the quantity invariant after a computed mutation.
// A violation here is a programming error, never silently clamped.
func (l *Lot) checkInvariant() error {
	if l.ReservedQuantity.IsNegative() ||
		l.ReservedQuantity.GreaterThan(l.RemainingQuantity) ||
		l.RemainingQuantity.GreaterThan(l.Quantity) {
		return shared.NewDomainError(ErrCodeValidation,
			"Lot quantity invariant violated: 0 <= reserved <= remaining <= quantity")
	}
	return nil
}

func (l *Lot) recordUpdate(byUser uuid.UUID) {
	l.UpdatedBy = &byUser
	l.Touch()
	l.IncrementVersion()
}

// Reserve places a soft hold on available quantity. Fails without mutating
// state when the request exceeds AvailableQuantity.
func (l *Lot) Reserve(quantity decimal.Decimal, byUser uuid.UUID) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrCodeValidation, "Reserve quantity must be positive")
	}
	if l.Status != StatusActive {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			"Cannot reserve quantity on a "+l.Status.String()+" lot")
	}
	if quantity.GreaterThan(l.AvailableQuantity()) {
		return &InsufficientQuantityError{
			LotNumber: l.LotNumber,
			Requested: quantity,
			Available: l.AvailableQuantity(),
		}
	}

	l.ReservedQuantity = l.ReservedQuantity.Add(quantity)
	if err := l.checkInvariant(); err != nil {
		return err
	}
	l.recordUpdate(byUser)

	l.AddDomainEvent(NewQuantityReservedEvent(l, quantity, byUser))

	return nil
}

// Release returns previously reserved quantity to the available pool.
// Over-release is a validation error.
func (l *Lot) Release(quantity decimal.Decimal, byUser uuid.UUID) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrCodeValidation, "Release quantity must be positive")
	}
	if quantity.GreaterThan(l.ReservedQuantity) {
		return shared.NewDomainError(ErrCodeValidation,
			"Cannot release more than the reserved quantity ("+l.ReservedQuantity.String()+")")
	}

	l.ReservedQuantity = l.ReservedQuantity.Sub(quantity)
	if err := l.checkInvariant(); err != nil {
		return err
	}
	l.recordUpdate(byUser)

	l.AddDomainEvent(NewQuantityReleasedEvent(l, quantity, byUser))

	return nil
}

// Consume permanently deducts quantity from the lot. Consumption is bounded
// by RemainingQuantity; a matching reservation is consumed first when one
// exists. When remaining reaches zero the lot transitions to CONSUMED.
func (l *Lot) Consume(quantity decimal.Decimal, byUser uuid.UUID) error {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(ErrCodeValidation, "Consume quantity must be positive")
	}
	if quantity.GreaterThan(l.RemainingQuantity) {
		return &InsufficientQuantityError{
			LotNumber: l.LotNumber,
			Requested: quantity,
			Available: l.RemainingQuantity,
		}
	}

	// reserved quantity is consumed before free quantity
	fromReserved := decimal.Min(quantity, l.ReservedQuantity)
	l.RemainingQuantity = l.RemainingQuantity.Sub(quantity)
	l.ReservedQuantity = l.ReservedQuantity.Sub(fromReserved)
	if err := l.checkInvariant(); err != nil {
		return err
	}
	l.recordUpdate(byUser)

	l.AddDomainEvent(NewQuantityConsumedEvent(l, quantity, byUser))

	if l.RemainingQuantity.IsZero() && l.Status != StatusConsumed {
		previous := l.Status
		l.Status = StatusConsumed
		l.AddDomainEvent(NewStatusChangedEvent(l, previous, StatusConsumed, byUser))
	}

	return nil
}

// AdjustQuantity is an administrative correction of RemainingQuantity
// (cycle count, damage write-off). The reason is a domain rule, not merely
// schema validation: it must be human-readable and at least
// MinAdjustmentReasonLength characters. Adjusting to the current value is
// a no-op. Remaining cannot be set below ReservedQuantity or above the
// manufactured Quantity.
func (l *Lot) AdjustQuantity(newRemaining decimal.Decimal, reason string, byUser uuid.UUID) error {
	reason = strings.TrimSpace(reason)
	if len(reason) < MinAdjustmentReasonLength {
		return shared.NewDomainError(ErrCodeValidation, "Adjustment reason must be at least 5 characters")
	}
	if newRemaining.IsNegative() {
		return shared.NewDomainError(ErrCodeValidation, "Remaining quantity cannot be negative")
	}
	if newRemaining.LessThan(l.ReservedQuantity) {
		return shared.NewDomainError(ErrCodeValidation,
			"Remaining quantity cannot be set below the reserved quantity ("+l.ReservedQuantity.String()+")")
	}
	if newRemaining.GreaterThan(l.Quantity) {
		return shared.NewDomainError(ErrCodeValidation,
			"Remaining quantity cannot exceed the manufactured quantity ("+l.Quantity.String()+")")
	}

	if newRemaining.Equal(l.RemainingQuantity) {
		return nil
	}

	previous := l.RemainingQuantity
	l.RemainingQuantity = newRemaining
	if err := l.checkInvariant(); err != nil {
		return err
	}
	l.recordUpdate(byUser)

	l.AddDomainEvent(NewQuantityAdjustedEvent(l, previous, newRemaining, reason, byUser))

	if l.RemainingQuantity.IsZero() && l.Status == StatusActive {
		l.Status = StatusConsumed
		l.AddDomainEvent(NewStatusChangedEvent(l, StatusActive, StatusConsumed, byUser))
	}

	return nil
}

// TransitionTo moves the lot to a new lifecycle status. Transitions not in
// the allowed table are rejected; CONSUMED additionally requires the
// remaining quantity to be exhausted.
func (l *Lot) TransitionTo(target Status, byUser uuid.UUID) error {
	if !target.IsValid() {
		return shared.NewDomainError(ErrCodeValidation, "Unknown lot status: "+target.String())
	}
	if target == l.Status {
		return nil
	}
	if !CanTransition(l.Status, target) {
		return &InvalidTransitionError{From: l.Status, To: target}
	}
	if target == StatusConsumed && l.RemainingQuantity.GreaterThan(decimal.Zero) {
		return &InvalidTransitionError{From: l.Status, To: target}
	}

	previous := l.Status
	l.Status = target
	l.recordUpdate(byUser)

	l.AddDomainEvent(NewStatusChangedEvent(l, previous, target, byUser))

	return nil
}

// MarkExpired transitions the lot to EXPIRED (time-driven or manual)
func (l *Lot) MarkExpired(byUser uuid.UUID) error {
	return l.TransitionTo(StatusExpired, byUser)
}

// Quarantine places a quality hold on the lot
func (l *Lot) Quarantine(byUser uuid.UUID) error {
	return l.TransitionTo(StatusQuarantine, byUser)
}

// CanDelete reports whether the lot may be deleted without force
func (l *Lot) CanDelete() bool {
	return l.RemainingQuantity.IsZero() && l.ReservedQuantity.IsZero()
}

// PrepareDelete validates deletion. Without force, a lot with remaining or
// reserved quantity is rejected. With force, quantities are discarded; the
// emitted event carries what was thrown away so the destructive operation
// is logged.
func (l *Lot) PrepareDelete(force bool, byUser uuid.UUID) error {
	if !l.CanDelete() && !force {
		return shared.NewDomainError(shared.ErrInvalidState.Code,
			"Cannot delete lot "+l.LotNumber+" with remaining or reserved quantity; use force to override")
	}

	l.AddDomainEvent(NewLotDeletedEvent(l, force, byUser))

	return nil
}

// UpdateDetails updates the mutable descriptive fields. Quantity state and
// identity fields are not touched here.
func (l *Lot) UpdateDetails(batchNumber, supplierLotCode, notes string, supplierID *uuid.UUID, byUser uuid.UUID) {
	l.BatchNumber = strings.TrimSpace(batchNumber)
	l.SupplierLotCode = strings.TrimSpace(supplierLotCode)
	l.Notes = notes
	l.SupplierID = supplierID
	l.recordUpdate(byUser)
}
