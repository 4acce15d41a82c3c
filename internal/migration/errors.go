package migration

import "errors"

// Sentinel errors for the verification and issuance pipeline. Handlers map
// these to HTTP status codes; everything else is wrapped with %w so callers
// can still match with errors.Is.
var (
	// ErrInvalidAddress means the destination address failed format validation.
	ErrInvalidAddress = errors.New("invalid ethereum address")

	// ErrNotFound means no claim row or no transaction exists for the request.
	ErrNotFound = errors.New("migration claim not found")

	// ErrMismatch means the on-chain record does not match the requested
	// account or destination address.
	ErrMismatch = errors.New("account or address mismatch")

	// ErrNotCompleted means the claim row exists but the migration has not
	// been finalized on the source ledger.
	ErrNotCompleted = errors.New("migration not completed")

	// ErrExecutionFailed means the referenced source transaction did not execute.
	ErrExecutionFailed = errors.New("transaction was not executed")

	// ErrActionMissing means the transaction exists but contains no migration action.
	ErrActionMissing = errors.New("no migration action found in transaction")

	// ErrBadAmount means an asset amount string could not be parsed exactly,
	// or converts to zero and therefore has nothing to issue.
	ErrBadAmount = errors.New("malformed asset amount")

	// ErrAmountUnavailable means the claim was proven but its amount could
	// not be read from the claim table, so issuance cannot proceed.
	ErrAmountUnavailable = errors.New("claim amount unavailable")

	// ErrNoSigner means issuance was attempted without a configured signing key.
	ErrNoSigner = errors.New("signing key not configured")

	// ErrConflict means an issuance for the same claim is already in flight.
	ErrConflict = errors.New("issuance already in flight for this claim")

	// ErrChain covers RPC, gas-estimation and submission failures on the
	// destination chain. The transaction was never accepted by the network.
	ErrChain = errors.New("destination chain failure")

	// ErrUnconfirmed means the transaction was submitted but confirmation
	// timed out. It must not be retried blindly; the issuance ledger holds
	// the tx hash for reconciliation.
	ErrUnconfirmed = errors.New("transaction submitted but not confirmed")
)
