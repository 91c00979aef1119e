package scan

import "context"

// RFIDReader is the capability contract for the RFID hardware session.
//
// Start returns a stream of tag identifiers. The stream closes when the
// session ends, whether by Stop or by hardware failure; a failure is
// reported through the stream closing with Err returning non-nil.
type RFIDReader interface {
	Start(ctx context.Context, cadence Cadence) (<-chan string, error)
	Stop(ctx context.Context) error
	// Err reports why the last stream closed. Nil means a clean stop.
	Err() error
}

// BarcodeReader is the capability contract for the barcode scanner.
// Semantics mirror RFIDReader minus the cadence parameter.
type BarcodeReader interface {
	Start(ctx context.Context) (<-chan string, error)
	Stop(ctx context.Context) error
	Err() error
}

// TriggerAction is a physical-button event.
type TriggerAction int

const (
	// TriggerStart is the scan button pressed.
	TriggerStart TriggerAction = iota + 1
	// TriggerStop is the scan button released or the stop button pressed.
	TriggerStop
	// TriggerClear is the clear button: it ends any active scan and
	// releases scanning focus entirely.
	TriggerClear
)

// TriggerSource emits physical-button events. The channel closes when the
// hardware goes away.
type TriggerSource interface {
	Events() <-chan TriggerAction
}
