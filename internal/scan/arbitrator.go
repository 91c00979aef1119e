package scan

import (
	"context"
	"log/slog"
	"sync"
)

// resultBuffer bounds the result stream so a slow consumer cannot block
// the Run loop. Continuous RFID bursts beyond it are dropped with a log.
const resultBuffer = 16

// OwnerConfig describes the workflow currently holding scanning focus.
//
// The precondition is re-evaluated at every trigger press, never cached:
// whether scanning is permitted changes as the user moves through workflow
// steps, and a stale answer would start scans the workflow cannot accept.
type OwnerConfig struct {
	// Preferred is the hardware source a bare trigger press starts.
	Preferred Kind
	// Cadence applies when Preferred is KindRfid.
	Cadence Cadence
	// Context is the logical purpose trigger-started scans carry.
	Context Context
	// Precondition gates trigger-started scans. Nil rejects all triggers.
	Precondition func() bool
}

// Arbitrator enforces the single-active-scan invariant across RFID,
// barcode, and trigger hardware.
//
// Thread-safety model:
//   - Run() must be called from exactly one goroutine; it owns the session
//   - request methods (StartBarcode, StartRFID, Stop, SetOwner) are safe
//     from any goroutine and block until the loop confirms the request
//   - Results() and Faults() are consumed asynchronously
type Arbitrator struct {
	rfid    RFIDReader
	barcode BarcodeReader
	tokens  TokenGenerator
	queue   *eventQueue

	// session is touched only by the Run loop goroutine.
	session Session
	owner   OwnerConfig

	results chan Result
	faults  chan *HardwareError

	// snapshot mirrors session for external State() reads.
	mu       sync.Mutex
	snapshot Session

	trigger TriggerSource
}

// Option configures an Arbitrator.
type Option func(*Arbitrator)

// WithTokenGenerator replaces the UUIDv7 session token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(a *Arbitrator) { a.tokens = g }
}

// WithTriggerSource wires a physical-button source into the event queue.
func WithTriggerSource(ts TriggerSource) Option {
	return func(a *Arbitrator) { a.trigger = ts }
}

// New creates an idle arbitrator over the given hardware.
func New(rfid RFIDReader, barcode BarcodeReader, opts ...Option) *Arbitrator {
	a := &Arbitrator{
		rfid:    rfid,
		barcode: barcode,
		tokens:  UUIDv7Generator{},
		queue:   newEventQueue(),
		results: make(chan Result, resultBuffer),
		faults:  make(chan *HardwareError, resultBuffer),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Results is the ordered stream of successful reads.
func (a *Arbitrator) Results() <-chan Result {
	return a.results
}

// Faults is the side channel for mid-scan hardware failures. A fault
// means the session it names is over and no result is coming.
func (a *Arbitrator) Faults() <-chan *HardwareError {
	return a.faults
}

// State returns a snapshot of the current scan session.
func (a *Arbitrator) State() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// StartBarcode requests a barcode scan for the given context. If a scan
// is already active it is stopped and confirmed first. Blocks until the
// new session is live or rejected.
func (a *Arbitrator) StartBarcode(ctx context.Context, sctx Context) error {
	return a.request(ctx, event{typ: eventStartRequested, kind: KindBarcode, sctx: sctx})
}

// StartRFID requests an RFID scan with the given cadence. Same
// stop-before-start contract as StartBarcode.
func (a *Arbitrator) StartRFID(ctx context.Context, sctx Context, cadence Cadence) error {
	return a.request(ctx, event{typ: eventStartRequested, kind: KindRfid, sctx: sctx, cadence: cadence})
}

// Stop ends the active scan, if any. Idle is not an error.
func (a *Arbitrator) Stop(ctx context.Context) error {
	return a.request(ctx, event{typ: eventStopRequested})
}

// SetOwner hands scanning focus to a new workflow. Any active scan is
// stopped first and the session reset, so no reads from the previous
// owner leak into the new one.
func (a *Arbitrator) SetOwner(ctx context.Context, cfg OwnerConfig) error {
	return a.request(ctx, event{typ: eventConfigure, owner: &cfg})
}

// Trigger injects a physical-button event. Fire and forget: hardware
// buttons have no caller to report back to.
func (a *Arbitrator) Trigger(action TriggerAction) {
	a.queue.Enqueue(event{typ: eventTrigger, trigger: action})
}

func (a *Arbitrator) request(ctx context.Context, ev event) error {
	ev.reply = make(chan error, 1)
	if !a.queue.Enqueue(ev) {
		return ErrStopped
	}
	select {
	case err := <-ev.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single-writer event loop. Blocks until ctx is cancelled;
// on the way out it stops any active scan and rejects queued requests.
//
// Must be called from exactly one goroutine.
func (a *Arbitrator) Run(ctx context.Context) error {
	if a.trigger != nil {
		go a.pumpTrigger(a.trigger.Events())
	}
	slog.Info("scan arbitrator starting")

	for {
		ev, ok := a.queue.TryDequeue()
		if ok {
			a.processEvent(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			a.teardown(ctx)
			return ctx.Err()
		case <-a.queue.Wait():
			// A wakeup with nothing queued can be a coalesced signal
			// left over from an event handled on a previous pass; only
			// an actually closed queue ends the loop.
			if a.queue.Closed() && a.queue.Len() == 0 {
				slog.Info("scan arbitrator stopping: queue closed")
				return nil
			}
		}
	}
}

// teardown is the any-state-to-Idle cleanup edge.
func (a *Arbitrator) teardown(ctx context.Context) {
	slog.Info("scan arbitrator stopping: context cancelled")
	if a.session.Scanning {
		if err := a.stopActive(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("scan stop during teardown failed", "error", err)
		}
	}
	a.queue.Close()
	// Reject callers still waiting on queued requests.
	for {
		ev, ok := a.queue.TryDequeue()
		if !ok {
			return
		}
		if ev.reply != nil {
			ev.reply <- ErrStopped
		}
	}
}

func (a *Arbitrator) processEvent(ctx context.Context, ev event) {
	var err error
	switch ev.typ {
	case eventStartRequested:
		err = a.handleStart(ctx, ev.kind, ev.cadence, ev.sctx)
	case eventStopRequested:
		err = a.handleStop(ctx)
	case eventTrigger:
		err = a.handleTrigger(ctx, ev.trigger)
	case eventHardwareResult:
		a.handleResult(ctx, ev)
	case eventHardwareError:
		a.handleHardwareError(ctx, ev)
	case eventConfigure:
		err = a.handleConfigure(ctx, ev.owner)
	default:
		slog.Error("unknown scan event", "type", int(ev.typ))
	}

	if ev.reply != nil {
		ev.reply <- err
	} else if err != nil {
		slog.Warn("scan event handling failed", "type", int(ev.typ), "error", err)
	}
}

// handleStart enforces stop-before-start: the active session, if any, is
// stopped and confirmed before the new hardware session is opened, so two
// sessions never race for the reader.
func (a *Arbitrator) handleStart(ctx context.Context, kind Kind, cadence Cadence, sctx Context) error {
	if a.session.Scanning {
		if err := a.stopActive(ctx); err != nil {
			return err
		}
	}
	return a.begin(ctx, kind, cadence, sctx)
}

func (a *Arbitrator) handleStop(ctx context.Context) error {
	if !a.session.Scanning {
		return nil
	}
	return a.stopActive(ctx)
}

// handleTrigger reads the state at handling time, never at press time. A
// start or stop press while any scan is active is a deterministic stop; a
// start press while idle starts the owner's preferred scan if its
// precondition holds now. A clear press releases scanning focus.
func (a *Arbitrator) handleTrigger(ctx context.Context, action TriggerAction) error {
	if action == TriggerClear {
		return a.handleClear(ctx)
	}
	if a.session.Scanning {
		return a.stopActive(ctx)
	}
	if action != TriggerStart {
		return nil
	}
	if a.owner.Precondition == nil || !a.owner.Precondition() {
		slog.Debug("trigger press rejected by owner precondition")
		return nil
	}
	return a.begin(ctx, a.owner.Preferred, a.owner.Cadence, a.owner.Context)
}

// handleClear ends any active scan and resets the owner configuration.
// Until a workflow takes focus again, further presses start nothing.
func (a *Arbitrator) handleClear(ctx context.Context) error {
	a.owner = OwnerConfig{}
	slog.Debug("scanning focus cleared")
	if a.session.Scanning {
		return a.stopActive(ctx)
	}
	return nil
}

func (a *Arbitrator) handleConfigure(ctx context.Context, cfg *OwnerConfig) error {
	if a.session.Scanning {
		if err := a.stopActive(ctx); err != nil {
			return err
		}
	}
	a.owner = *cfg
	slog.Debug("scanning focus changed",
		"preferred", cfg.Preferred, "context", cfg.Context.Name)
	return nil
}

// begin opens a hardware session and records it. Must only be called
// with the session idle.
func (a *Arbitrator) begin(ctx context.Context, kind Kind, cadence Cadence, sctx Context) error {
	token := a.tokens.Generate()

	var (
		stream <-chan string
		errFn  func() error
		err    error
	)
	switch kind {
	case KindBarcode:
		stream, err = a.barcode.Start(ctx)
		errFn = a.barcode.Err
	case KindRfid:
		stream, err = a.rfid.Start(ctx, cadence)
		errFn = a.rfid.Err
	default:
		slog.Debug("start ignored: no scan kind preferred")
		return nil
	}
	if err != nil {
		return &HardwareError{Kind: kind, Token: token, Err: err}
	}

	a.session = Session{Kind: kind, Scanning: true, Cadence: cadence, Context: sctx, Token: token}
	a.publish()
	go a.pumpReads(kind, token, stream, errFn)

	slog.Info("scan started",
		"kind", kind, "cadence", cadence, "context", sctx.Name, "token", token)
	return nil
}

// stopActive synchronously stops the live hardware session. Returning
// means the stop is confirmed; the session is cleared either way so a
// failed stop cannot wedge the state machine in a phantom session.
func (a *Arbitrator) stopActive(ctx context.Context) error {
	kind, token := a.session.Kind, a.session.Token
	a.session = Session{}
	a.publish()

	var err error
	switch kind {
	case KindBarcode:
		err = a.barcode.Stop(ctx)
	case KindRfid:
		err = a.rfid.Stop(ctx)
	}
	if err != nil {
		return err
	}
	slog.Info("scan stopped", "kind", kind, "token", token)
	return nil
}

// handleResult delivers a read to the owner and applies the end-of-scan
// rules: single-cadence RFID and stop-after-read barcode contexts return
// to idle, everything else keeps scanning.
func (a *Arbitrator) handleResult(ctx context.Context, ev event) {
	if !a.session.Scanning || ev.token != a.session.Token {
		slog.Debug("stale read dropped", "kind", ev.kind, "token", ev.token)
		return
	}

	res := Result{
		Kind:    a.session.Kind,
		Context: a.session.Context,
		Payload: ev.payload,
		Token:   ev.token,
	}
	select {
	case a.results <- res:
	default:
		slog.Warn("result dropped: consumer not keeping up",
			"kind", res.Kind, "payload", res.Payload)
	}

	done := (a.session.Kind == KindRfid && a.session.Cadence == CadenceSingle) ||
		(a.session.Kind == KindBarcode && a.session.Context.StopAfterRead)
	if done {
		if err := a.stopActive(ctx); err != nil {
			slog.Warn("auto-stop after read failed", "error", err)
		}
	}
}

// handleHardwareError ends the failed session and reports it on the
// fault side channel.
func (a *Arbitrator) handleHardwareError(ctx context.Context, ev event) {
	if !a.session.Scanning || ev.token != a.session.Token {
		return
	}

	if err := a.stopActive(ctx); err != nil {
		slog.Debug("stop after hardware failure also failed", "error", err)
	}
	fault := &HardwareError{Kind: ev.kind, Token: ev.token, Err: ev.err}
	select {
	case a.faults <- fault:
	default:
		slog.Error("hardware fault dropped: side channel full", "error", fault)
	}
	slog.Warn("scan terminated by hardware failure", "kind", ev.kind, "error", ev.err)
}

// pumpReads forwards one session's hardware stream into the event queue.
// It carries the session token so reads arriving after a stop are
// recognizably stale. A stream that closes with a driver error becomes a
// hardware-error event.
func (a *Arbitrator) pumpReads(kind Kind, token string, stream <-chan string, errFn func() error) {
	for payload := range stream {
		a.queue.Enqueue(event{typ: eventHardwareResult, kind: kind, token: token, payload: payload})
	}
	if err := errFn(); err != nil {
		a.queue.Enqueue(event{typ: eventHardwareError, kind: kind, token: token, err: err})
	}
}

func (a *Arbitrator) pumpTrigger(events <-chan TriggerAction) {
	for action := range events {
		a.queue.Enqueue(event{typ: eventTrigger, trigger: action})
	}
}

func (a *Arbitrator) publish() {
	a.mu.Lock()
	a.snapshot = a.session
	a.mu.Unlock()
}
