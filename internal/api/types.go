package api

// Field names follow the wallet front-end's existing JSON contract.

// ==================== Migration Status ====================

// StatusRequest asks whether a claim is verified and eligible for issuance
type StatusRequest struct {
	TelosAccount string `json:"telosAccount"`
	EthAddress   string `json:"ethAddress"`
}

// MigrationInfo describes a verified claim
type MigrationInfo struct {
	Account            string `json:"account"`
	EthAddress         string `json:"ethAddress"`
	Amount             string `json:"amount"`
	Migrated           bool   `json:"migrated"`
	VerificationMethod string `json:"verificationMethod"`
	TransactionID      string `json:"transactionId,omitempty"`
	BlockNum           uint64 `json:"blockNumber,omitempty"`
	BlockTime          string `json:"blockTime,omitempty"`
}

// StatusResponse reports the verification outcome
type StatusResponse struct {
	Success           bool           `json:"success"`
	MigrationVerified bool           `json:"migrationVerified"`
	Message           string         `json:"message,omitempty"`
	Error             string         `json:"error,omitempty"`
	Migration         *MigrationInfo `json:"migration,omitempty"`
}

// ==================== Mint ====================

// MintRequest asks for verification plus issuance. TransactionID is
// optional on the hybrid endpoint and required on the by-tx endpoint.
type MintRequest struct {
	TelosAccount  string `json:"telosAccount"`
	EthAddress    string `json:"ethAddress"`
	TransactionID string `json:"transactionId,omitempty"`
}

// MintReceipt is the confirmed issuance result
type MintReceipt struct {
	TxHash          string `json:"txHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	GasUsed         uint64 `json:"gasUsed"`
	Amount          string `json:"amount"`
	AmountBaseUnits string `json:"amountInUnits"`
	To              string `json:"to"`
	From            string `json:"from"`
}

// MintResponse reports a completed issuance
type MintResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Migration *MigrationInfo `json:"migration,omitempty"`
	Mint      *MintReceipt   `json:"mint,omitempty"`
}

// ==================== Balance ====================

// BalanceResponse reports a destination-chain token balance
type BalanceResponse struct {
	Address   string `json:"address"`
	Balance   string `json:"balance"`
	Formatted string `json:"formatted"`
	Decimals  int    `json:"decimals"`
}

// ==================== Health ====================

// HealthServices reports per-dependency connectivity
type HealthServices struct {
	API          string `json:"api"`
	BaseNetwork  string `json:"baseNetwork"`
	TelosNetwork string `json:"telosNetwork"`
}

// HealthConfiguration reports signer state without exposing the key
type HealthConfiguration struct {
	WalletConfigured bool   `json:"walletConfigured"`
	WalletAddress    string `json:"walletAddress,omitempty"`
	LedgerDurable    bool   `json:"ledgerDurable"`
}

// HealthResponse is the aggregated health report
type HealthResponse struct {
	Status        string              `json:"status"`
	Timestamp     string              `json:"timestamp"`
	Services      HealthServices      `json:"services"`
	Configuration HealthConfiguration `json:"configuration"`
}

// ==================== Error Response ====================

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
