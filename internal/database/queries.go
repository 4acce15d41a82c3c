package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/n0umen0n/hypha-migration-suite/internal/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// CreateIssuance inserts a new issuance row. The unique constraint on
// (account, eth_address) is the cross-process double-issuance guard: a
// second insert for the same claim returns models.ErrDuplicateIssuance.
func (db *DB) CreateIssuance(ctx context.Context, iss *models.Issuance) error {
	query := `
		INSERT INTO issuances (
			account, eth_address, amount_display, amount_base_units, method, status
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := db.QueryRowContext(
		ctx, query,
		iss.Account,
		iss.EthAddress,
		iss.AmountDisplay,
		iss.AmountBaseUnits,
		iss.Method,
		iss.Status,
	).Scan(&iss.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return models.ErrDuplicateIssuance
	}
	return err
}

// GetIssuance retrieves the issuance for a claim key, or nil when none exists.
func (db *DB) GetIssuance(ctx context.Context, account, ethAddress string) (*models.Issuance, error) {
	var iss models.Issuance
	query := `
		SELECT id, account, eth_address, amount_display, amount_base_units,
		       method, status, tx_hash, block_number, gas_used, error_message
		FROM issuances
		WHERE account = $1 AND eth_address = $2
	`
	err := db.GetContext(ctx, &iss, query, account, ethAddress)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &iss, err
}

// MarkSubmitted records the transaction hash once the node accepted the call.
func (db *DB) MarkSubmitted(ctx context.Context, id int64, txHash string) error {
	query := `
		UPDATE issuances
		SET status = $1, tx_hash = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.IssuanceStatusSubmitted, txHash, id)
	return err
}

// MarkConfirmed records block inclusion.
func (db *DB) MarkConfirmed(ctx context.Context, id int64, blockNumber, gasUsed int64) error {
	query := `
		UPDATE issuances
		SET status = $1, block_number = $2, gas_used = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.IssuanceStatusConfirmed, blockNumber, gasUsed, id)
	return err
}

// MarkUnconfirmed flags a submitted transaction whose confirmation wait
// timed out. The reconciler picks these up; they are never re-submitted.
func (db *DB) MarkUnconfirmed(ctx context.Context, id int64) error {
	query := `
		UPDATE issuances
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	_, err := db.ExecContext(ctx, query, models.IssuanceStatusUnconfirmed, id)
	return err
}

// MarkFailed records a definitive failure and frees the claim key for retry.
// A failed row is deleted rather than kept, so that the uniqueness constraint
// does not block a later legitimate attempt; the failure itself is logged.
func (db *DB) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	query := `DELETE FROM issuances WHERE id = $1`
	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to clear issuance %d (%s): %w", id, errorMsg, err)
	}
	return nil
}

// GetIssuancesByStatus retrieves all issuances in a given status, oldest first.
func (db *DB) GetIssuancesByStatus(ctx context.Context, status models.IssuanceStatus) ([]models.Issuance, error) {
	var issuances []models.Issuance
	query := `
		SELECT id, account, eth_address, amount_display, amount_base_units,
		       method, status, tx_hash, block_number, gas_used, error_message
		FROM issuances
		WHERE status = $1
		ORDER BY id ASC
	`
	err := db.SelectContext(ctx, &issuances, query, status)
	return issuances, err
}
