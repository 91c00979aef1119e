package scan

// Kind identifies which hardware source a scan uses.
type Kind int

const (
	// KindNone means no scan is active.
	KindNone Kind = iota
	// KindBarcode is an optical barcode read.
	KindBarcode
	// KindRfid is an RFID tag inventory read.
	KindRfid
)

// String returns the lowercase name used in logs and traces.
func (k Kind) String() string {
	switch k {
	case KindBarcode:
		return "barcode"
	case KindRfid:
		return "rfid"
	default:
		return "none"
	}
}

// Cadence controls when an RFID scan ends.
type Cadence int

const (
	// CadenceSingle stops automatically after the first tag.
	CadenceSingle Cadence = iota
	// CadenceContinuous keeps scanning until explicitly stopped.
	CadenceContinuous
)

// String returns the lowercase cadence name.
func (c Cadence) String() string {
	if c == CadenceContinuous {
		return "continuous"
	}
	return "single"
}

// Context names the logical purpose a scan serves, so the same physical
// trigger can drive different workflows without cross-talk.
//
// StopAfterRead controls whether a successful barcode read ends the scan:
// a basket scan wants exactly one identifier, while a lookup context keeps
// scanning so the user can narrow a query incrementally.
type Context struct {
	Name          string
	StopAfterRead bool
}

// Predefined scan contexts.
var (
	ContextBasket          = Context{Name: "basket", StopAfterRead: true}
	ContextProductLookup   = Context{Name: "product_lookup", StopAfterRead: false}
	ContextWarehouseLookup = Context{Name: "warehouse_lookup", StopAfterRead: false}
)

// Session is the arbitrator's current scan state. It is owned exclusively
// by the Run loop and mutated on every start/stop transition; external
// code sees it only through snapshot copies.
type Session struct {
	// Kind is the active hardware source, KindNone when idle.
	Kind Kind
	// Scanning reports whether a hardware session is live.
	Scanning bool
	// Cadence applies to RFID sessions only.
	Cadence Cadence
	// Context is the logical purpose of the active scan.
	Context Context
	// Token correlates hardware reads with the session that started them.
	// Reads carrying a stale token are dropped.
	Token string
}

// Result is one successful read delivered to the owning workflow.
type Result struct {
	Kind    Kind
	Context Context
	// Payload is the decoded barcode or the RFID tag identifier.
	Payload string
	// Token identifies the scan session that produced the read.
	Token string
}
