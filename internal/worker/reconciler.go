package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/database"
	"github.com/n0umen0n/hypha-migration-suite/internal/models"
)

// Constants for reconciler configuration
const (
	DefaultPollInterval = 30 * time.Second
	PollTimeout         = 20 * time.Second
)

// Reconciler resolves issuances whose confirmation wait timed out. It polls
// the destination chain for receipts of submitted transactions and settles
// the ledger row accordingly. It never re-submits anything; a transaction
// with no receipt stays flagged until one appears or an operator steps in.
type Reconciler struct {
	db     *database.DB
	chain  ReceiptSource
	logger *zap.Logger

	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// ReceiptSource fetches transaction receipts. *evm.Client satisfies it.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// NewReconciler creates a reconciler polling at interval.
func NewReconciler(db *database.DB, chain ReceiptSource, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		db:       db,
		chain:    chain,
		logger:   logger.Named("reconciler"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the polling goroutine.
func (r *Reconciler) Start() {
	r.logger.Info("Reconciler started", zap.Duration("poll_interval", r.interval))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run()
	}()
}

// Shutdown stops the reconciler, waiting up to timeout for the current
// cycle to finish.
func (r *Reconciler) Shutdown(timeout time.Duration) error {
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("Reconciler stopped")
	case <-time.After(timeout):
		r.logger.Warn("Reconciler shutdown timed out")
	}
	return nil
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.poll(r.ctx)

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.poll(r.ctx)
		}
	}
}

// poll executes one reconciliation cycle over unresolved issuances.
func (r *Reconciler) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, PollTimeout)
	defer cancel()

	for _, status := range []models.IssuanceStatus{
		models.IssuanceStatusUnconfirmed,
		models.IssuanceStatusSubmitted,
	} {
		issuances, err := r.db.GetIssuancesByStatus(pollCtx, status)
		if err != nil {
			r.logger.Error("Failed to load issuances",
				zap.String("status", string(status)),
				zap.Error(err))
			continue
		}

		for i := range issuances {
			select {
			case <-pollCtx.Done():
				return
			default:
			}
			r.resolve(pollCtx, &issuances[i])
		}
	}
}

// resolve settles a single issuance if its receipt is now available.
func (r *Reconciler) resolve(ctx context.Context, iss *models.Issuance) {
	if iss.TxHash == nil {
		// Submission never got a hash recorded; nothing to look up.
		return
	}

	receipt, err := r.chain.GetTransactionReceipt(ctx, common.HexToHash(*iss.TxHash))
	if err != nil || receipt == nil {
		// Not mined yet or node unreachable. Try again next cycle.
		return
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		if err := r.db.MarkConfirmed(ctx, iss.ID, receipt.BlockNumber.Int64(), int64(receipt.GasUsed)); err != nil {
			r.logger.Error("Failed to confirm reconciled issuance",
				zap.Int64("id", iss.ID),
				zap.Error(err))
			return
		}
		r.logger.Info("Issuance reconciled as confirmed",
			zap.Int64("id", iss.ID),
			zap.String("account", iss.Account),
			zap.String("tx_hash", *iss.TxHash),
			zap.Uint64("block_number", receipt.BlockNumber.Uint64()))
		return
	}

	if err := r.db.MarkFailed(ctx, iss.ID, "transaction reverted"); err != nil {
		r.logger.Error("Failed to clear reverted issuance",
			zap.Int64("id", iss.ID),
			zap.Error(err))
		return
	}
	r.logger.Warn("Issuance reconciled as reverted",
		zap.Int64("id", iss.ID),
		zap.String("account", iss.Account),
		zap.String("tx_hash", *iss.TxHash))
}
