package basket

// legalEdges is the directed edge table of the basket state machine.
//
// Forward flow: Unassigned → InProduction → Received → InStock → Shipped,
// with InStock branching to Sampling and both Received and InStock
// branching to Damaged. Every status except Unassigned has the clear edge
// back to Unassigned, which also wipes associations (see Basket.Apply).
//
// Sampling and Damaged are terminal for forward flow; only the clear edge
// leaves them. The map is never mutated after package init.
var legalEdges = map[Status][]Status{
	StatusUnassigned:   {StatusInProduction},
	StatusInProduction: {StatusReceived, StatusUnassigned},
	StatusReceived:     {StatusInStock, StatusDamaged, StatusUnassigned},
	StatusInStock:      {StatusShipped, StatusSampling, StatusDamaged, StatusUnassigned},
	StatusShipped:      {StatusUnassigned},
	StatusSampling:     {StatusUnassigned},
	StatusDamaged:      {StatusUnassigned},
}

// CanTransition reports whether current → requested is a legal edge.
func CanTransition(current, requested Status) bool {
	for _, next := range legalEdges[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successor statuses of current, in table
// order. The returned slice is a copy and safe to mutate.
func NextStatuses(current Status) []Status {
	edges := legalEdges[current]
	out := make([]Status, len(edges))
	copy(out, edges)
	return out
}

// ValidateTransition returns nil when current → requested is legal and an
// *InvalidTransitionError otherwise. It is the single gate used by every
// write path; an illegal request must fail here before any remote call or
// queue insertion happens.
func ValidateTransition(current, requested Status) error {
	if !requested.Valid() {
		return &InvalidTransitionError{Current: current, Requested: requested}
	}
	if !CanTransition(current, requested) {
		return &InvalidTransitionError{Current: current, Requested: requested}
	}
	return nil
}
