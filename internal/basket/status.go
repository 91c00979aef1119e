package basket

import "fmt"

// Status is the lifecycle state of a physical basket.
//
// A basket holds exactly one status at any time. Transitions between
// statuses are constrained by the edge table in transitions.go; every
// write path validates against it before touching storage or the network.
type Status string

const (
	// StatusUnassigned is the initial status: the tag is registered but
	// carries no product, batch, warehouse, or quantity.
	StatusUnassigned Status = "unassigned"

	// StatusInProduction means the basket is filling on a production line.
	// Quantity is the configured capacity.
	StatusInProduction Status = "in_production"

	// StatusReceived means the basket passed warehouse intake.
	StatusReceived Status = "received"

	// StatusInStock means the basket is stored and pickable.
	// Quantity is the remaining unit count.
	StatusInStock Status = "in_stock"

	// StatusShipped means the basket left on a truck.
	StatusShipped Status = "shipped"

	// StatusSampling means the basket was pulled for quality sampling.
	StatusSampling Status = "sampling"

	// StatusDamaged means damage was discovered at intake or in storage.
	StatusDamaged Status = "damaged"
)

// AllStatuses lists every status in declaration order.
// Used for table-driven validation and CLI output.
var AllStatuses = []Status{
	StatusUnassigned,
	StatusInProduction,
	StatusReceived,
	StatusInStock,
	StatusShipped,
	StatusSampling,
	StatusDamaged,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUnassigned, StatusInProduction, StatusReceived,
		StatusInStock, StatusShipped, StatusSampling, StatusDamaged:
		return true
	}
	return false
}

// ParseStatus converts a stored or wire string into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown basket status %q", raw)
	}
	return s, nil
}

func (s Status) String() string { return string(s) }
