package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/blockchain/telos"
)

// SourceReader is the read-only view of the source ledger the verifiers
// need. *telos.Client satisfies it; tests substitute a fake.
type SourceReader interface {
	GetTableRow(ctx context.Context, code, scope, table, key string) (json.RawMessage, error)
	GetTransaction(ctx context.Context, id string) (*telos.Transaction, error)
}

// Params fixes the migration contract identity on the source ledger.
type Params struct {
	Contract   string // contract account, e.g. "migratehypha"
	Table      string // claim table, e.g. "migrations"
	ActionName string // migration action, e.g. "migrate"
	Symbol     string // source asset symbol, e.g. "HYPHA"
}

// StateVerifier verifies a migration claim by reading current ledger state:
// the claim table row keyed by account.
type StateVerifier struct {
	src    SourceReader
	params Params
	logger *zap.Logger
}

// NewStateVerifier creates a state verifier.
func NewStateVerifier(src SourceReader, params Params, logger *zap.Logger) *StateVerifier {
	return &StateVerifier{
		src:    src,
		params: params,
		logger: logger,
	}
}

// Verify fetches and checks the claim row for account. The returned record's
// account and address always match the request (address case-insensitively).
func (v *StateVerifier) Verify(ctx context.Context, account, ethAddress string) (*ClaimRecord, error) {
	raw, err := v.src.GetTableRow(ctx, v.params.Contract, v.params.Contract, v.params.Table, account)
	if err != nil {
		if errors.Is(err, telos.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %s has no claim row", ErrNotFound, account)
		}
		return nil, fmt.Errorf("claim row query failed: %w", err)
	}

	row, err := parseClaimRow(raw, v.params.Symbol)
	if err != nil {
		return nil, fmt.Errorf("claim row for %s: %w", account, err)
	}

	if row.Account != account {
		return nil, fmt.Errorf("%w: row belongs to %q, requested %q", ErrMismatch, row.Account, account)
	}
	if !row.Migrated {
		return nil, fmt.Errorf("%w: account %s", ErrNotCompleted, account)
	}
	if !strings.EqualFold(row.EthAddress, ethAddress) {
		return nil, fmt.Errorf("%w: destination address does not match claim", ErrMismatch)
	}

	v.logger.Debug("Claim verified from state",
		zap.String("account", account),
		zap.String("amount", row.Amount))

	return &ClaimRecord{
		Account:       row.Account,
		EthAddress:    row.EthAddress,
		AmountDisplay: row.Amount,
		Migrated:      true,
		Method:        MethodState,
	}, nil
}

// ProofVerifier verifies a migration claim by reading a specific historical
// transaction and its emitted migration action.
type ProofVerifier struct {
	src    SourceReader
	params Params
	logger *zap.Logger
}

// NewProofVerifier creates a proof verifier.
func NewProofVerifier(src SourceReader, params Params, logger *zap.Logger) *ProofVerifier {
	return &ProofVerifier{
		src:    src,
		params: params,
		logger: logger,
	}
}

// migrateActionData is the payload of the migration action. The action
// carries no quantity; the amount lives only in the claim table.
type migrateActionData struct {
	User       string `json:"user"`
	EthAddress string `json:"eth_address"`
}

// Verify fetches the transaction, requires it to have executed, and checks
// that it carries a migration action matching the requested account and
// address.
func (v *ProofVerifier) Verify(ctx context.Context, transactionID, account, ethAddress string) (*ClaimRecord, error) {
	tx, err := v.src.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, telos.ErrNotFound) {
			return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("transaction lookup failed: %w", err)
	}

	if tx.Status != "executed" {
		return nil, fmt.Errorf("%w: transaction %s has status %q", ErrExecutionFailed, transactionID, tx.Status)
	}

	var data migrateActionData
	found := false
	for _, action := range tx.Actions {
		if action.Account != v.params.Contract || action.Name != v.params.ActionName {
			continue
		}
		if err := json.Unmarshal(action.Data, &data); err != nil {
			return nil, fmt.Errorf("malformed %s action data: %w", v.params.ActionName, err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("%w: transaction %s", ErrActionMissing, transactionID)
	}

	if data.User != account {
		return nil, fmt.Errorf("%w: transaction was sent by %q, requested %q", ErrMismatch, data.User, account)
	}
	if !strings.EqualFold(data.EthAddress, ethAddress) {
		return nil, fmt.Errorf("%w: destination address does not match transaction", ErrMismatch)
	}

	amount, err := v.claimAmount(ctx, account)
	if err != nil {
		return nil, err
	}

	v.logger.Debug("Claim verified from transaction",
		zap.String("account", account),
		zap.String("transaction_id", transactionID),
		zap.Uint64("block_num", tx.BlockNum))

	return &ClaimRecord{
		Account:       data.User,
		EthAddress:    data.EthAddress,
		AmountDisplay: amount,
		Migrated:      true,
		Method:        MethodProof,
		TransactionID: transactionID,
		BlockNum:      tx.BlockNum,
		BlockTime:     tx.BlockTime,
	}, nil
}

// claimAmount reads the claim table row to obtain the migrated amount. A
// proven transaction alone does not carry one, and issuing without a
// recorded amount would consume the claim for nothing.
func (v *ProofVerifier) claimAmount(ctx context.Context, account string) (string, error) {
	raw, err := v.src.GetTableRow(ctx, v.params.Contract, v.params.Contract, v.params.Table, account)
	if err != nil {
		if errors.Is(err, telos.ErrNotFound) {
			return "", fmt.Errorf("%w: no claim row for %s", ErrAmountUnavailable, account)
		}
		return "", fmt.Errorf("claim row query failed: %w", err)
	}

	row, err := parseClaimRow(raw, v.params.Symbol)
	if err != nil {
		return "", fmt.Errorf("claim row for %s: %w", account, err)
	}
	if row.Account != account {
		return "", fmt.Errorf("%w: row belongs to %q, requested %q", ErrAmountUnavailable, row.Account, account)
	}
	return row.Amount, nil
}

// Orchestrator composes the two verifiers with a fallback policy. State
// lookup is the cheap, canonical source of truth; proof verification covers
// rows that have not been indexed yet or were pruned.
type Orchestrator struct {
	state  *StateVerifier
	proof  *ProofVerifier
	logger *zap.Logger
}

// NewOrchestrator creates a verification orchestrator.
func NewOrchestrator(state *StateVerifier, proof *ProofVerifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		state:  state,
		proof:  proof,
		logger: logger,
	}
}

// Verify runs state verification first and falls back to transaction-proof
// verification when a transaction id was supplied. When both methods fail
// the returned error carries both reasons.
func (o *Orchestrator) Verify(ctx context.Context, account, ethAddress, transactionID string) (*ClaimRecord, error) {
	if !ValidAddress(ethAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ethAddress)
	}

	record, stateErr := o.state.Verify(ctx, account, ethAddress)
	if stateErr == nil {
		return record, nil
	}
	if transactionID == "" {
		return nil, stateErr
	}

	o.logger.Info("State verification failed, falling back to transaction proof",
		zap.String("account", account),
		zap.String("transaction_id", transactionID),
		zap.Error(stateErr))

	record, proofErr := o.proof.Verify(ctx, transactionID, account, ethAddress)
	if proofErr == nil {
		return record, nil
	}

	// Both reasons matter for diagnosis: the state error says why the row
	// was unusable, the proof error why the transaction was too.
	return nil, fmt.Errorf("verification failed by both methods: %w", errors.Join(stateErr, proofErr))
}

// VerifyByProof runs transaction-proof verification only, with no state
// fallback. Callers that pin the method get the proof answer or its failure.
func (o *Orchestrator) VerifyByProof(ctx context.Context, transactionID, account, ethAddress string) (*ClaimRecord, error) {
	if !ValidAddress(ethAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, ethAddress)
	}
	return o.proof.Verify(ctx, transactionID, account, ethAddress)
}

// Outcome wraps a (record, error) verification result into the outcome shape
// exposed at the API boundary.
func Outcome(record *ClaimRecord, err error) VerificationOutcome {
	if err != nil {
		return VerificationOutcome{Verified: false, FailureReason: err}
	}
	return VerificationOutcome{
		Verified: true,
		Method:   record.Method,
		Record:   record,
	}
}
