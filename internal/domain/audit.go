package domain

// Settlement audit stages.
const (
	AuditStageClaim     = "claim"
	AuditStageSign      = "sign"
	AuditStageSubmit    = "submit"
	AuditStageConfirm   = "confirm"
	AuditStageReconcile = "reconcile"
)

// SettlementAuditEvent is one append-only audit log row describing the outcome
// of a settlement stage. Stored in ClickHouse for analysis; never read back by
// the settlement path itself.
type SettlementAuditEvent struct {
	TimestampMs  int64  // event time, Unix milliseconds
	SettlementID string
	ListingID    int64
	Stage        string // claim | sign | submit | confirm | reconcile
	Outcome      string // ok | failed
	Reason       string // failure reason, empty on ok
	LatencyMs    int64  // stage duration
}
