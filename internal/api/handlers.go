package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/blockchain/telos"
	"github.com/n0umen0n/hypha-migration-suite/internal/migration"
	"github.com/n0umen0n/hypha-migration-suite/internal/service"
)

// Verifier produces a canonical claim record or a typed failure. Verify is
// the hybrid path (state with proof fallback); VerifyByProof pins the method.
type Verifier interface {
	Verify(ctx context.Context, account, ethAddress, transactionID string) (*migration.ClaimRecord, error)
	VerifyByProof(ctx context.Context, transactionID, account, ethAddress string) (*migration.ClaimRecord, error)
}

// Issuer drives issuance of a verified claim on the destination chain.
type Issuer interface {
	Issue(ctx context.Context, claim *migration.ClaimRecord) (*migration.IssuanceReceipt, error)
}

// BalanceProvider reads destination-chain token balances.
type BalanceProvider interface {
	ReadBalance(ctx context.Context, address string) (*service.BalanceInfo, error)
}

// SourceProber checks source-ledger connectivity for the health report.
type SourceProber interface {
	GetInfo(ctx context.Context) (*telos.ChainInfo, error)
}

// ChainProber checks destination-chain connectivity and signer state.
type ChainProber interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HasSigner() bool
	OperatorAddress() common.Address
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	verifier      Verifier
	issuer        Issuer
	balances      BalanceProvider
	source        SourceProber
	chain         ChainProber
	ledgerDurable bool
	metrics       *metricsRegistry
	logger        *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	verifier Verifier,
	issuer Issuer,
	balances BalanceProvider,
	source SourceProber,
	chain ChainProber,
	ledgerDurable bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		verifier:      verifier,
		issuer:        issuer,
		balances:      balances,
		source:        source,
		chain:         chain,
		ledgerDurable: ledgerDurable,
		metrics:       newMetricsRegistry(),
		logger:        logger,
	}
}

// ==================== Migration Status ====================

// HandleStatus handles GET and POST /api/v1/migration/status.
// It verifies the claim without issuing anything.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if r.Method == http.MethodGet {
		req.TelosAccount = r.URL.Query().Get("telosAccount")
		req.EthAddress = r.URL.Query().Get("ethAddress")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
			return
		}
	}

	if req.TelosAccount == "" || req.EthAddress == "" {
		respondError(w, http.StatusBadRequest, "telosAccount and ethAddress are required", "missing_fields", nil)
		return
	}
	if !migration.ValidAddress(req.EthAddress) {
		respondError(w, http.StatusBadRequest, "Invalid Ethereum address format", "invalid_address", nil)
		return
	}

	record, err := h.verifier.Verify(r.Context(), req.TelosAccount, req.EthAddress, "")
	outcome := migration.Outcome(record, err)
	if !outcome.Verified {
		h.metrics.incVerification("state", "failed")
		h.logger.Info("Verification failed",
			zap.String("account", req.TelosAccount),
			zap.Error(outcome.FailureReason))

		// A failed status check is a valid answer, not an HTTP error.
		respondJSON(w, http.StatusOK, StatusResponse{
			Success:           false,
			MigrationVerified: false,
			Error:             outcome.FailureReason.Error(),
		})
		return
	}

	h.metrics.incVerification(string(outcome.Method), "verified")
	respondJSON(w, http.StatusOK, StatusResponse{
		Success:           true,
		MigrationVerified: true,
		Message:           "Migration verified successfully",
		Migration:         migrationInfo(outcome.Record),
	})
}

// ==================== Mint ====================

// HandleMint handles POST /api/v1/migration/mint. Verification is hybrid:
// state first, transaction proof as fallback when transactionId is present.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	h.handleIssue(w, r, false)
}

// HandleMintByTx handles POST /api/v1/migration/mint-by-tx, which requires
// a transaction id and verifies by transaction proof only.
func (h *Handler) HandleMintByTx(w http.ResponseWriter, r *http.Request) {
	h.handleIssue(w, r, true)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request, requireTx bool) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}

	if req.TelosAccount == "" || req.EthAddress == "" {
		respondError(w, http.StatusBadRequest, "telosAccount and ethAddress are required", "missing_fields", nil)
		return
	}
	if requireTx && req.TransactionID == "" {
		respondError(w, http.StatusBadRequest, "transactionId is required", "missing_fields", nil)
		return
	}
	if !migration.ValidAddress(req.EthAddress) {
		respondError(w, http.StatusBadRequest, "Invalid Ethereum address format", "invalid_address", nil)
		return
	}

	h.logger.Info("Mint request",
		zap.String("account", req.TelosAccount),
		zap.String("eth_address", req.EthAddress),
		zap.String("transaction_id", req.TransactionID))

	var record *migration.ClaimRecord
	var err error
	if requireTx {
		record, err = h.verifier.VerifyByProof(r.Context(), req.TransactionID, req.TelosAccount, req.EthAddress)
	} else {
		record, err = h.verifier.Verify(r.Context(), req.TelosAccount, req.EthAddress, req.TransactionID)
	}
	if err != nil {
		h.metrics.incVerification(failedVerifyLabel(requireTx, req.TransactionID), "failed")
		status, code := statusForError(err)
		respondError(w, status, "Migration verification failed", code, err)
		return
	}
	h.metrics.incVerification(string(record.Method), "verified")

	receipt, err := h.issuer.Issue(r.Context(), record)
	if err != nil {
		h.metrics.incIssuance(issuanceOutcome(err))
		status, code := statusForError(err)
		h.logger.Error("Issuance failed",
			zap.String("account", req.TelosAccount),
			zap.Error(err))
		respondError(w, status, "Mint failed", code, err)
		return
	}
	h.metrics.incIssuance("confirmed")

	respondJSON(w, http.StatusOK, MintResponse{
		Success:   true,
		Message:   "Mint completed successfully",
		Migration: migrationInfo(record),
		Mint: &MintReceipt{
			TxHash:          receipt.TxHash,
			BlockNumber:     receipt.BlockNumber,
			GasUsed:         receipt.GasUsed,
			Amount:          record.AmountDisplay,
			AmountBaseUnits: receipt.AmountBaseUnits.String(),
			To:              receipt.To,
			From:            receipt.From,
		},
	})
}

// ==================== Balance ====================

// HandleBalance handles GET /api/v1/balance/{address}
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	info, err := h.balances.ReadBalance(r.Context(), address)
	if err != nil {
		h.metrics.incBalanceRead("failed")
		status, code := statusForError(err)
		respondError(w, status, "Balance check failed", code, err)
		return
	}
	h.metrics.incBalanceRead("ok")

	respondJSON(w, http.StatusOK, BalanceResponse{
		Address:   address,
		Balance:   info.Balance,
		Formatted: info.Formatted,
		Decimals:  info.Decimals,
	})
}

// ==================== Health ====================

// HandleHealth returns the aggregated service health: connectivity of both
// chains and signer configuration.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	baseStatus := "unknown"
	if chainID, err := h.chain.ChainID(ctx); err == nil {
		baseStatus = fmt.Sprintf("connected (chainId: %s)", chainID.String())
	} else {
		baseStatus = fmt.Sprintf("error: %v", err)
	}

	telosStatus := "unknown"
	if info, err := h.source.GetInfo(ctx); err == nil {
		telosStatus = fmt.Sprintf("connected (head_block: %d)", info.HeadBlockNum)
	} else {
		telosStatus = fmt.Sprintf("error: %v", err)
	}

	cfg := HealthConfiguration{
		WalletConfigured: h.chain.HasSigner(),
		LedgerDurable:    h.ledgerDurable,
	}
	if cfg.WalletConfigured {
		cfg.WalletAddress = truncateAddress(h.chain.OperatorAddress().Hex())
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: HealthServices{
			API:          "operational",
			BaseNetwork:  baseStatus,
			TelosNetwork: telosStatus,
		},
		Configuration: cfg,
	})
}

// ==================== Helper Functions ====================

func migrationInfo(record *migration.ClaimRecord) *MigrationInfo {
	return &MigrationInfo{
		Account:            record.Account,
		EthAddress:         record.EthAddress,
		Amount:             record.AmountDisplay,
		Migrated:           record.Migrated,
		VerificationMethod: string(record.Method),
		TransactionID:      record.TransactionID,
		BlockNum:           record.BlockNum,
		BlockTime:          record.BlockTime,
	}
}

// statusForError maps typed domain errors to HTTP status codes and stable
// machine-readable code strings.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, migration.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, migration.ErrNotFound):
		return http.StatusBadRequest, "not_found"
	case errors.Is(err, migration.ErrMismatch):
		return http.StatusBadRequest, "mismatch"
	case errors.Is(err, migration.ErrNotCompleted):
		return http.StatusBadRequest, "not_completed"
	case errors.Is(err, migration.ErrExecutionFailed):
		return http.StatusBadRequest, "execution_failed"
	case errors.Is(err, migration.ErrActionMissing):
		return http.StatusBadRequest, "action_missing"
	case errors.Is(err, migration.ErrBadAmount):
		return http.StatusBadRequest, "bad_amount"
	case errors.Is(err, migration.ErrAmountUnavailable):
		return http.StatusBadRequest, "amount_unavailable"
	case errors.Is(err, migration.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, migration.ErrNoSigner):
		return http.StatusInternalServerError, "wallet_not_configured"
	case errors.Is(err, migration.ErrUnconfirmed):
		return http.StatusBadGateway, "unconfirmed"
	case errors.Is(err, migration.ErrChain):
		return http.StatusBadGateway, "chain_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// failedVerifyLabel names the verification path that failed: the by-tx
// endpoint is proof-only, the hybrid endpoint may have run both methods.
func failedVerifyLabel(requireTx bool, transactionID string) string {
	switch {
	case requireTx:
		return string(migration.MethodProof)
	case transactionID == "":
		return string(migration.MethodState)
	default:
		return "hybrid"
	}
}

func issuanceOutcome(err error) string {
	switch {
	case errors.Is(err, migration.ErrConflict):
		return "conflict"
	case errors.Is(err, migration.ErrUnconfirmed):
		return "unconfirmed"
	default:
		return "failed"
	}
}

func truncateAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message, code string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	respondJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Message: errorMsg,
	})
}
