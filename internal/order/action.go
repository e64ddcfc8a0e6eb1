package order

// Action is the outcome of evaluating a machine for one day.
type Action string

// Machine actions.
const (
	ActionNone      Action = "none"
	ActionActivated Action = "activated"
	ActionUpdated   Action = "updated"
	ActionCancelled Action = "cancelled"
	ActionBlocked   Action = "blocked" // triggered but a gate held it back; order kept
	ActionAborted   Action = "aborted" // triggered and rejected by a rule; recorded as ABORTED_*
	ActionExecuted  Action = "executed"
)

// Blocked reasons. These are no-ops and never produce a transaction.
const (
	BlockBuyDisabled  = "buy_disabled"
	BlockEntryDelay   = "entry_delay"
	BlockMaxLots      = "max_lots"
	BlockGridSpacing  = "grid_spacing"
	BlockSellDisabled = "sell_disabled"
	BlockBelowLimit   = "below_limit"
	BlockUnprofitable = "unprofitable"
)
