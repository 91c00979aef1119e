package basket

import "time"

// Basket is the local snapshot of one physical RFID-tagged container.
//
// Tag is the globally unique identifier printed into the RFID tag and is
// immutable for the basket's lifetime. The association fields are pointers
// because they are meaningful only in a subset of statuses: a basket in
// StatusUnassigned carries none of them.
type Basket struct {
	Tag        string
	Status     Status
	ProductRef *string
	BatchRef   *string
	Warehouse  *string
	Quantity   int
	UpdatedAt  time.Time
	UpdatedBy  string
}

// NewUnassigned returns the snapshot created on first registration of a tag.
func NewUnassigned(tag, actor string, now time.Time) Basket {
	return Basket{
		Tag:       tag,
		Status:    StatusUnassigned,
		UpdatedAt: now,
		UpdatedBy: actor,
	}
}

// Update is the field set carried by a single basket write.
//
// Nil pointers mean "leave unchanged"; the clear edge back to
// StatusUnassigned ignores them and wipes every association instead.
type Update struct {
	Status     Status
	ProductRef *string
	BatchRef   *string
	Warehouse  *string
	Quantity   *int
}

// ValidateQuantity rejects negative quantities. Nil means "unchanged" and
// is always fine.
func ValidateQuantity(q *int) error {
	if q != nil && *q < 0 {
		return &InvalidQuantityError{Quantity: *q}
	}
	return nil
}

// Apply merges an update into a snapshot and returns the result.
// The caller is responsible for having validated the transition first.
func (b Basket) Apply(u Update, actor string, now time.Time) Basket {
	next := b
	next.Status = u.Status
	next.UpdatedAt = now
	next.UpdatedBy = actor

	if u.Status == StatusUnassigned {
		// Clear edge: associations and quantity do not survive.
		next.ProductRef = nil
		next.BatchRef = nil
		next.Warehouse = nil
		next.Quantity = 0
		return next
	}

	if u.ProductRef != nil {
		next.ProductRef = u.ProductRef
	}
	if u.BatchRef != nil {
		next.BatchRef = u.BatchRef
	}
	if u.Warehouse != nil {
		next.Warehouse = u.Warehouse
	}
	if u.Quantity != nil {
		next.Quantity = *u.Quantity
	}
	return next
}

// HasAssociations reports whether any of product/batch/warehouse is set.
// A well-formed Unassigned snapshot must report false.
func (b Basket) HasAssociations() bool {
	return b.ProductRef != nil || b.BatchRef != nil || b.Warehouse != nil
}
