package constants

// Status is the per-file outcome reported to progress listeners and the ledger.
type Status string

// Stable values (stored as-is in the ledger).
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped" // already processed in an earlier batch
)
