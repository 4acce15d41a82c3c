package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/blockchain/telos"
	"github.com/n0umen0n/hypha-migration-suite/internal/migration"
	"github.com/n0umen0n/hypha-migration-suite/internal/service"
)

const testAddress = "0xAbC0000000000000000000000000000000000001"

type fakeVerifier struct {
	record *migration.ClaimRecord
	err    error

	gotAccount string
	gotAddress string
	gotTxID    string
	proofOnly  bool
}

func (f *fakeVerifier) Verify(_ context.Context, account, ethAddress, transactionID string) (*migration.ClaimRecord, error) {
	f.gotAccount = account
	f.gotAddress = ethAddress
	f.gotTxID = transactionID
	f.proofOnly = false
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeVerifier) VerifyByProof(_ context.Context, transactionID, account, ethAddress string) (*migration.ClaimRecord, error) {
	f.gotAccount = account
	f.gotAddress = ethAddress
	f.gotTxID = transactionID
	f.proofOnly = true
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type fakeIssuer struct {
	receipt *migration.IssuanceReceipt
	err     error
	calls   int
}

func (f *fakeIssuer) Issue(_ context.Context, _ *migration.ClaimRecord) (*migration.IssuanceReceipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.receipt, nil
}

type fakeBalances struct {
	info *service.BalanceInfo
	err  error
}

func (f *fakeBalances) ReadBalance(_ context.Context, _ string) (*service.BalanceInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type fakeSource struct {
	info *telos.ChainInfo
	err  error
}

func (f *fakeSource) GetInfo(_ context.Context) (*telos.ChainInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

type fakeChain struct {
	chainID *big.Int
	err     error
	signer  bool
}

func (f *fakeChain) ChainID(_ context.Context) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.chainID, nil
}

func (f *fakeChain) HasSigner() bool { return f.signer }

func (f *fakeChain) OperatorAddress() common.Address {
	return common.HexToAddress("0x00000000000000000000000000000000000000Fe")
}

func verifiedRecord() *migration.ClaimRecord {
	return &migration.ClaimRecord{
		Account:       "alice",
		EthAddress:    testAddress,
		AmountDisplay: "10.0000 HYPHA",
		Migrated:      true,
		Method:        migration.MethodState,
	}
}

func confirmedReceipt() *migration.IssuanceReceipt {
	amount, _ := new(big.Int).SetString("10000000000000000000", 10)
	return &migration.IssuanceReceipt{
		TxHash:          "0xdead",
		BlockNumber:     100,
		GasUsed:         21000,
		AmountBaseUnits: amount,
		To:              testAddress,
		From:            "0x00000000000000000000000000000000000000Fe",
	}
}

func newTestHandler(verifier Verifier, issuer Issuer, balances BalanceProvider) *Handler {
	return NewHandler(verifier, issuer, balances,
		&fakeSource{info: &telos.ChainInfo{HeadBlockNum: 999}},
		&fakeChain{chainID: big.NewInt(8453), signer: true},
		true, zap.NewNop())
}

func TestHandleStatusGet(t *testing.T) {
	verifier := &fakeVerifier{record: verifiedRecord()}
	handler := newTestHandler(verifier, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/migration/status?telosAccount=alice&ethAddress="+testAddress, nil)
	w := httptest.NewRecorder()

	handler.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success || !response.MigrationVerified {
		t.Errorf("expected verified response, got %+v", response)
	}
	if response.Migration == nil || response.Migration.Account != "alice" {
		t.Errorf("expected migration info, got %+v", response.Migration)
	}
	if verifier.gotTxID != "" {
		t.Errorf("status check must not pass a transaction id, got %q", verifier.gotTxID)
	}
}

func TestHandleStatusPost(t *testing.T) {
	verifier := &fakeVerifier{record: verifiedRecord()}
	handler := newTestHandler(verifier, nil, nil)

	body, _ := json.Marshal(StatusRequest{TelosAccount: "alice", EthAddress: testAddress})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/status", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if verifier.gotAccount != "alice" || verifier.gotAddress != testAddress {
		t.Errorf("request not forwarded: account=%q address=%q", verifier.gotAccount, verifier.gotAddress)
	}
}

// A failed verification is a valid status answer, not an HTTP error.
func TestHandleStatusVerificationFailed(t *testing.T) {
	verifier := &fakeVerifier{err: migration.ErrNotCompleted}
	handler := newTestHandler(verifier, nil, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/migration/status?telosAccount=alice&ethAddress="+testAddress, nil)
	w := httptest.NewRecorder()

	handler.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Success || response.MigrationVerified {
		t.Errorf("expected unverified response, got %+v", response)
	}
	if response.Error == "" {
		t.Error("expected failure reason in response")
	}
}

func TestHandleStatusValidation(t *testing.T) {
	handler := newTestHandler(&fakeVerifier{}, nil, nil)

	tests := []struct {
		name  string
		query string
	}{
		{name: "missing account", query: "?ethAddress=" + testAddress},
		{name: "missing address", query: "?telosAccount=alice"},
		{name: "malformed address", query: "?telosAccount=alice&ethAddress=0x123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/migration/status"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.HandleStatus(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestHandleMint(t *testing.T) {
	verifier := &fakeVerifier{record: verifiedRecord()}
	issuer := &fakeIssuer{receipt: confirmedReceipt()}
	handler := newTestHandler(verifier, issuer, nil)

	body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleMint(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	var response MintResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success || response.Mint == nil {
		t.Fatalf("expected mint receipt, got %+v", response)
	}
	if response.Mint.TxHash != "0xdead" {
		t.Errorf("unexpected tx hash %q", response.Mint.TxHash)
	}
	if response.Mint.AmountBaseUnits != "10000000000000000000" {
		t.Errorf("unexpected base units %q", response.Mint.AmountBaseUnits)
	}
	if issuer.calls != 1 {
		t.Errorf("expected one issuance, got %d", issuer.calls)
	}
}

func TestHandleMintVerificationFailure(t *testing.T) {
	verifier := &fakeVerifier{err: migration.ErrNotFound}
	issuer := &fakeIssuer{receipt: confirmedReceipt()}
	handler := newTestHandler(verifier, issuer, nil)

	body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleMint(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if issuer.calls != 0 {
		t.Errorf("issuance must not run on failed verification, got %d calls", issuer.calls)
	}
}

func TestHandleMintErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		issueErr       error
		expectedStatus int
		expectedCode   string
	}{
		{name: "conflict", issueErr: migration.ErrConflict, expectedStatus: http.StatusConflict, expectedCode: "conflict"},
		{name: "no signer", issueErr: migration.ErrNoSigner, expectedStatus: http.StatusInternalServerError, expectedCode: "wallet_not_configured"},
		{name: "unconfirmed", issueErr: migration.ErrUnconfirmed, expectedStatus: http.StatusBadGateway, expectedCode: "unconfirmed"},
		{name: "chain failure", issueErr: migration.ErrChain, expectedStatus: http.StatusBadGateway, expectedCode: "chain_error"},
		{name: "bad amount", issueErr: migration.ErrBadAmount, expectedStatus: http.StatusBadRequest, expectedCode: "bad_amount"},
		{name: "unknown", issueErr: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{record: verifiedRecord()}
			issuer := &fakeIssuer{err: tt.issueErr}
			handler := newTestHandler(verifier, issuer, nil)

			body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.HandleMint(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			var response ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Code != tt.expectedCode {
				t.Errorf("expected code %q, got %q", tt.expectedCode, response.Code)
			}
		})
	}
}

func TestHandleMintByTxRequiresTransactionID(t *testing.T) {
	handler := newTestHandler(&fakeVerifier{record: verifiedRecord()}, &fakeIssuer{receipt: confirmedReceipt()}, nil)

	body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint-by-tx", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleMintByTx(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandleMintByTxForwardsTransactionID(t *testing.T) {
	verifier := &fakeVerifier{record: verifiedRecord()}
	handler := newTestHandler(verifier, &fakeIssuer{receipt: confirmedReceipt()}, nil)

	body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress, TransactionID: "abc123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint-by-tx", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleMintByTx(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if verifier.gotTxID != "abc123" {
		t.Errorf("transaction id not forwarded, got %q", verifier.gotTxID)
	}
	if !verifier.proofOnly {
		t.Error("by-tx endpoint must verify by proof only")
	}
}

func TestHandleMintUsesHybridVerification(t *testing.T) {
	verifier := &fakeVerifier{record: verifiedRecord()}
	handler := newTestHandler(verifier, &fakeIssuer{receipt: confirmedReceipt()}, nil)

	body, _ := json.Marshal(MintRequest{TelosAccount: "alice", EthAddress: testAddress, TransactionID: "abc123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/migration/mint", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.HandleMint(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if verifier.proofOnly {
		t.Error("hybrid endpoint must not pin the proof method")
	}
}

func TestFailedVerificationMetricLabels(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		byTx          bool
		transactionID string
		expectedLabel string
	}{
		{name: "proof-only endpoint", path: "/api/v1/migration/mint-by-tx", byTx: true, transactionID: "abc123", expectedLabel: string(migration.MethodProof)},
		{name: "hybrid with transaction id", path: "/api/v1/migration/mint", transactionID: "abc123", expectedLabel: "hybrid"},
		{name: "state only", path: "/api/v1/migration/mint", expectedLabel: string(migration.MethodState)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &fakeVerifier{err: migration.ErrNotFound}
			handler := newTestHandler(verifier, &fakeIssuer{}, nil)

			body, _ := json.Marshal(MintRequest{
				TelosAccount:  "alice",
				EthAddress:    testAddress,
				TransactionID: tt.transactionID,
			})
			req := httptest.NewRequest(http.MethodPost, tt.path, bytes.NewReader(body))
			w := httptest.NewRecorder()

			if tt.byTx {
				handler.HandleMintByTx(w, req)
			} else {
				handler.HandleMint(w, req)
			}

			got := testutil.ToFloat64(
				handler.metrics.verificationsTotal.WithLabelValues(tt.expectedLabel, "failed"))
			if got != 1 {
				t.Errorf("expected counter %q/failed to be 1, got %v", tt.expectedLabel, got)
			}
		})
	}
}

func TestHandleBalance(t *testing.T) {
	balances := &fakeBalances{info: &service.BalanceInfo{
		Balance:   "10500000000000000000",
		Formatted: "10.5",
		Decimals:  18,
	}}
	handler := newTestHandler(nil, nil, balances)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance/"+testAddress, nil)
	req = mux.SetURLVars(req, map[string]string{"address": testAddress})
	w := httptest.NewRecorder()

	handler.HandleBalance(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response BalanceResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Formatted != "10.5" || response.Decimals != 18 {
		t.Errorf("unexpected response %+v", response)
	}
}

func TestHandleBalanceInvalidAddress(t *testing.T) {
	balances := &fakeBalances{err: migration.ErrInvalidAddress}
	handler := newTestHandler(nil, nil, balances)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance/0x123", nil)
	req = mux.SetURLVars(req, map[string]string{"address": "0x123"})
	w := httptest.NewRecorder()

	handler.HandleBalance(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", response.Status)
	}
	if !response.Configuration.WalletConfigured {
		t.Error("expected wallet configured")
	}
	if response.Configuration.WalletAddress == "" {
		t.Error("expected truncated wallet address")
	}
	if len(response.Configuration.WalletAddress) >= len("0x00000000000000000000000000000000000000Fe") {
		t.Errorf("wallet address not truncated: %q", response.Configuration.WalletAddress)
	}
	if !response.Configuration.LedgerDurable {
		t.Error("expected durable ledger flag")
	}
}

func TestHandleHealthDegradedDependencies(t *testing.T) {
	handler := NewHandler(nil, nil, nil,
		&fakeSource{err: errors.New("connection refused")},
		&fakeChain{err: errors.New("connection refused"), signer: false},
		false, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Configuration.WalletConfigured {
		t.Error("expected unconfigured wallet")
	}
	if response.Configuration.WalletAddress != "" {
		t.Error("wallet address must be omitted when unconfigured")
	}
}
