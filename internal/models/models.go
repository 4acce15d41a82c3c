package models

import "errors"

// ErrDuplicateIssuance is returned by ledger implementations when an
// issuance row already exists for the claim key. The uniqueness constraint
// is what makes the guard hold across processes.
var ErrDuplicateIssuance = errors.New("issuance already recorded for this claim")

// IssuanceStatus represents the state of an issuance attempt.
type IssuanceStatus string

const (
	// IssuanceStatusPending means the slot is held but nothing was submitted yet.
	IssuanceStatusPending IssuanceStatus = "PENDING"
	// IssuanceStatusSubmitted means the transaction was accepted by the RPC node.
	IssuanceStatusSubmitted IssuanceStatus = "SUBMITTED"
	// IssuanceStatusConfirmed means the transaction was included in a block.
	IssuanceStatusConfirmed IssuanceStatus = "CONFIRMED"
	// IssuanceStatusUnconfirmed means submission succeeded but the
	// confirmation wait timed out; the reconciler resolves these.
	IssuanceStatusUnconfirmed IssuanceStatus = "UNCONFIRMED"
	// IssuanceStatusFailed means the attempt definitively failed before or
	// at inclusion. The claim may be retried.
	IssuanceStatusFailed IssuanceStatus = "FAILED"
)

// Terminal reports whether the status needs no further reconciliation.
func (s IssuanceStatus) Terminal() bool {
	return s == IssuanceStatusConfirmed || s == IssuanceStatusFailed
}

// Issuance is one destination-chain issuance attempt for a migration claim.
// The (account, eth_address) pair is unique: one claim, one issuance.
type Issuance struct {
	ID              int64          `db:"id"`
	Account         string         `db:"account"`
	EthAddress      string         `db:"eth_address"` // stored lowercased
	AmountDisplay   string         `db:"amount_display"`
	AmountBaseUnits string         `db:"amount_base_units"` // decimal string, exceeds int64
	Method          string         `db:"method"`
	Status          IssuanceStatus `db:"status"`
	TxHash          *string        `db:"tx_hash"`
	BlockNumber     *int64         `db:"block_number"`
	GasUsed         *int64         `db:"gas_used"`
	ErrorMessage    *string        `db:"error_message"`
}
