package ledger

import "time"

// Operation names used in logs and metrics
const (
	OpOpenAccount     = "open_account"
	OpDeposit         = "deposit"
	OpWithdraw        = "withdraw"
	OpAdjust          = "adjust"
	OpTransfer        = "transfer"
	OpTransferByOwner = "transfer_by_owner"
)

// Default configuration values
const (
	DefaultMaxRetries   = 2
	DefaultRetryBackoff = 25 * time.Millisecond
	DefaultTxTimeout    = 10 * time.Second
)

const resultSuccess = "success"
