package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/migration"
	"github.com/n0umen0n/hypha-migration-suite/internal/models"
)

// TokenIssuer is the destination-chain surface the coordinator needs.
// *evm.Token satisfies it; tests substitute a fake.
type TokenIssuer interface {
	HasSigner() bool
	OperatorAddress() common.Address
	Issue(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

// DefaultConfirmTimeout bounds the confirmation wait after submission.
const DefaultConfirmTimeout = 2 * time.Minute

// IssuanceCoordinator serializes issuance per claim key and drives the
// convert, submit, confirm sequence against the destination chain. The
// in-process slot map rejects concurrent duplicates immediately; the ledger
// rejects duplicates across restarts and processes.
type IssuanceCoordinator struct {
	issuer         TokenIssuer
	ledger         Ledger
	decimals       int
	confirmTimeout time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewIssuanceCoordinator creates an issuance coordinator. ledger must not be
// nil; use NewMemoryLedger when no database is configured.
func NewIssuanceCoordinator(
	issuer TokenIssuer,
	ledger Ledger,
	decimals int,
	confirmTimeout time.Duration,
	logger *zap.Logger,
) *IssuanceCoordinator {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	return &IssuanceCoordinator{
		issuer:         issuer,
		ledger:         ledger,
		decimals:       decimals,
		confirmTimeout: confirmTimeout,
		logger:         logger,
		inflight:       make(map[string]struct{}),
	}
}

// acquireSlot claims the execution slot for a claim key. A held slot fails
// fast with ErrConflict rather than queueing: the caller already knows the
// claim is being processed and gets the same answer sooner.
func (c *IssuanceCoordinator) acquireSlot(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.inflight[key]; held {
		return fmt.Errorf("%w: %s", migration.ErrConflict, key)
	}
	c.inflight[key] = struct{}{}
	return nil
}

func (c *IssuanceCoordinator) releaseSlot(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// Issue converts the verified claim's amount to base units, submits the
// issuance call, waits for one confirmation, and returns the receipt. The
// claim must come from a successful verification; Issue re-checks nothing on
// the source ledger.
func (c *IssuanceCoordinator) Issue(ctx context.Context, claim *migration.ClaimRecord) (*migration.IssuanceReceipt, error) {
	if claim == nil || !claim.Migrated {
		return nil, fmt.Errorf("%w: claim is not verified", migration.ErrNotCompleted)
	}

	key := migration.ClaimKey(claim.Account, claim.EthAddress)
	if err := c.acquireSlot(key); err != nil {
		return nil, err
	}
	defer c.releaseSlot(key)

	if !c.issuer.HasSigner() {
		return nil, migration.ErrNoSigner
	}

	amount, err := migration.ToBaseUnits(claim.AmountDisplay, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("claim amount %q: %w", claim.AmountDisplay, err)
	}
	// A zero submission would burn gas and permanently consume the claim key.
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: claim amount %q issues nothing", migration.ErrBadAmount, claim.AmountDisplay)
	}

	// Consult the ledger before touching the chain. A confirmed issuance
	// replays its receipt; anything else in flight is a conflict that an
	// operator or the reconciler resolves.
	existing, err := c.ledger.GetIssuance(ctx, claim.Account, strings.ToLower(claim.EthAddress))
	if err != nil {
		return nil, fmt.Errorf("issuance ledger lookup: %w", err)
	}
	if existing != nil {
		if existing.Status == models.IssuanceStatusConfirmed {
			return c.replayReceipt(claim, existing)
		}
		return nil, fmt.Errorf("%w: recorded with status %s", migration.ErrConflict, existing.Status)
	}

	iss := &models.Issuance{
		Account:         claim.Account,
		EthAddress:      strings.ToLower(claim.EthAddress),
		AmountDisplay:   claim.AmountDisplay,
		AmountBaseUnits: amount.String(),
		Method:          string(claim.Method),
		Status:          models.IssuanceStatusPending,
	}
	if err := c.ledger.CreateIssuance(ctx, iss); err != nil {
		if err == models.ErrDuplicateIssuance {
			return nil, fmt.Errorf("%w: already recorded", migration.ErrConflict)
		}
		return nil, fmt.Errorf("issuance ledger insert: %w", err)
	}

	c.logger.Info("Issuing tokens",
		zap.String("account", claim.Account),
		zap.String("to", claim.EthAddress),
		zap.String("amount", claim.AmountDisplay),
		zap.String("amount_base_units", amount.String()),
		zap.String("method", string(claim.Method)))

	txHash, err := c.issuer.Issue(ctx, common.HexToAddress(claim.EthAddress), amount)
	if err != nil {
		// Never submitted: clear the ledger row so the claim can be retried.
		if lerr := c.ledger.MarkFailed(ctx, iss.ID, err.Error()); lerr != nil {
			c.logger.Error("Failed to clear issuance after submit error", zap.Error(lerr))
		}
		return nil, fmt.Errorf("%w: %v", migration.ErrChain, err)
	}

	if err := c.ledger.MarkSubmitted(ctx, iss.ID, txHash.Hex()); err != nil {
		c.logger.Error("Failed to record submitted tx hash",
			zap.String("tx_hash", txHash.Hex()),
			zap.Error(err))
	}

	receipt, err := c.issuer.WaitMined(ctx, txHash, c.confirmTimeout)
	if err != nil {
		// Submitted but fate unknown: keep the row, flag for reconciliation,
		// and surface this distinctly so nobody re-submits.
		if lerr := c.ledger.MarkUnconfirmed(ctx, iss.ID); lerr != nil {
			c.logger.Error("Failed to flag unconfirmed issuance", zap.Error(lerr))
		}
		return nil, fmt.Errorf("%w: tx %s", migration.ErrUnconfirmed, txHash.Hex())
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		if lerr := c.ledger.MarkFailed(ctx, iss.ID, "transaction reverted"); lerr != nil {
			c.logger.Error("Failed to clear reverted issuance", zap.Error(lerr))
		}
		return nil, fmt.Errorf("%w: transaction %s reverted", migration.ErrChain, txHash.Hex())
	}

	blockNumber := receipt.BlockNumber.Uint64()
	if err := c.ledger.MarkConfirmed(ctx, iss.ID, int64(blockNumber), int64(receipt.GasUsed)); err != nil {
		c.logger.Error("Failed to record confirmed issuance", zap.Error(err))
	}

	c.logger.Info("Issuance confirmed",
		zap.String("account", claim.Account),
		zap.String("tx_hash", txHash.Hex()),
		zap.Uint64("block_number", blockNumber),
		zap.Uint64("gas_used", receipt.GasUsed))

	return &migration.IssuanceReceipt{
		TxHash:          txHash.Hex(),
		BlockNumber:     blockNumber,
		GasUsed:         receipt.GasUsed,
		AmountBaseUnits: amount,
		To:              claim.EthAddress,
		From:            c.issuer.OperatorAddress().Hex(),
	}, nil
}

// replayReceipt rebuilds the receipt of an already-confirmed issuance.
// Returning the recorded result makes Issue idempotent for completed claims.
func (c *IssuanceCoordinator) replayReceipt(claim *migration.ClaimRecord, iss *models.Issuance) (*migration.IssuanceReceipt, error) {
	amount, ok := new(big.Int).SetString(iss.AmountBaseUnits, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt issuance record for %s: amount %q", claim.Account, iss.AmountBaseUnits)
	}

	receipt := &migration.IssuanceReceipt{
		AmountBaseUnits: amount,
		To:              claim.EthAddress,
		From:            c.issuer.OperatorAddress().Hex(),
	}
	if iss.TxHash != nil {
		receipt.TxHash = *iss.TxHash
	}
	if iss.BlockNumber != nil {
		receipt.BlockNumber = uint64(*iss.BlockNumber)
	}
	if iss.GasUsed != nil {
		receipt.GasUsed = uint64(*iss.GasUsed)
	}

	c.logger.Info("Replaying confirmed issuance",
		zap.String("account", claim.Account),
		zap.String("tx_hash", receipt.TxHash))

	return receipt, nil
}
