package observability

const (
	MetricPrefix = "arcade"
)

// Metric names
const (
	// Ledger metrics
	LedgerEntriesTotal = MetricPrefix + ".ledger.entries_total"
	LedgerEntryAmount  = MetricPrefix + ".ledger.entry_amount"

	// Transfer metrics
	TransfersTotal = MetricPrefix + ".transfers.completed_total"
	TransferAmount = MetricPrefix + ".transfers.amount"

	// Account metrics
	AccountsRegisteredTotal = MetricPrefix + ".accounts.registered_total"

	// HTTP metrics
	HTTPRequestsTotal   = MetricPrefix + ".http.requests_total"
	HTTPRequestDuration = MetricPrefix + ".http.request_duration"
)

// Label keys
const (
	LabelOutcome = "outcome"
	LabelGame    = "game"
	LabelMethod  = "method"
	LabelRoute   = "route"
	LabelStatus  = "status"
)

// Ledger outcomes
const (
	OutcomeWin  = "win"
	OutcomeLoss = "loss"
	OutcomeSync = "neutral"
)
