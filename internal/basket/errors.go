package basket

import (
	"errors"
	"fmt"
)

// InvalidTransitionError reports a write whose requested status is not a
// legal edge from the basket's current status. It is always terminal: the
// request never reaches the local store or the pending-operation queue.
type InvalidTransitionError struct {
	Current   Status
	Requested Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid basket transition: %s → %s", e.Current, e.Requested)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
// Uses errors.As to handle wrapped errors.
func IsInvalidTransition(err error) bool {
	var te *InvalidTransitionError
	return errors.As(err, &te)
}

// InvalidQuantityError reports a write carrying a negative quantity.
// Like a transition rejection it is terminal: nothing is stored or queued.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be non-negative, got %d", e.Quantity)
}

// IsInvalidQuantity reports whether err is an InvalidQuantityError.
func IsInvalidQuantity(err error) bool {
	var qe *InvalidQuantityError
	return errors.As(err, &qe)
}
