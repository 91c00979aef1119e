// Package scan merges RFID, barcode, and physical-trigger input into one
// ordered result stream owned by a single workflow at a time.
//
// All state transitions happen in the arbitrator's single-writer Run loop.
// UI requests, trigger presses, and hardware reads are funneled through one
// serialized event queue, so a trigger press racing a UI start always
// resolves deterministically against the state at handling time.
package scan
