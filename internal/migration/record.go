package migration

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// VerifyMethod identifies which verification path produced a claim record.
type VerifyMethod string

const (
	MethodState VerifyMethod = "state"
	MethodProof VerifyMethod = "transaction-proof"
)

// ClaimRecord is the canonical, normalized migration claim. It is produced
// fresh per request by a verifier and consumed immediately by the issuance
// coordinator; nothing persists it.
type ClaimRecord struct {
	Account       string
	EthAddress    string // original case preserved for display
	AmountDisplay string // e.g. "10.0000 HYPHA"
	Migrated      bool
	Method        VerifyMethod

	// Audit fields, populated by the proof path only.
	TransactionID string
	BlockNum      uint64
	BlockTime     string
}

// VerificationOutcome is the result of a verification request. Exactly one of
// Record and FailureReason is set.
type VerificationOutcome struct {
	Verified      bool
	Method        VerifyMethod
	Record        *ClaimRecord
	FailureReason error
}

// IssuanceReceipt is returned after destination-chain confirmation and is
// immutable once produced.
type IssuanceReceipt struct {
	TxHash          string
	BlockNumber     uint64
	GasUsed         uint64
	AmountBaseUnits *big.Int
	To              string
	From            string
}

// claimRow holds the four semantic fields of a migration table row after
// shape detection. The source ledger serializes rows either positionally
// ([account, amount, eth_address, migrated, timestamp]) or as a named
// structure; this is the single point where that ambiguity is resolved.
type claimRow struct {
	Account    string
	Amount     string // display string, defaulted when absent
	EthAddress string
	Migrated   bool
}

// namedClaimRow matches the field-named row encoding.
type namedClaimRow struct {
	Account    string          `json:"account"`
	Amount     json.RawMessage `json:"amount"`
	EthAddress string          `json:"eth_address"`
	Migrated   json.RawMessage `json:"migrated"`
}

// parseClaimRow normalizes a raw table row into a claimRow. Unknown or
// missing fields default to empty/false/zero rather than failing; the
// verifier rejects on semantic grounds afterwards.
func parseClaimRow(raw json.RawMessage, symbol string) (claimRow, error) {
	var row claimRow

	// Positional encoding arrives as a JSON array.
	var seq []json.RawMessage
	if err := json.Unmarshal(raw, &seq); err == nil {
		return claimRowFromFields(seq, symbol), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return row, fmt.Errorf("unrecognized row encoding: %w", err)
	}

	// Some endpoints deliver positional rows as objects keyed by the literal
	// index "0", "1", ... Detect that and treat them positionally too.
	if _, ok := fields["0"]; ok {
		seq = make([]json.RawMessage, 0, len(fields))
		for i := 0; ; i++ {
			v, ok := fields[strconv.Itoa(i)]
			if !ok {
				break
			}
			seq = append(seq, v)
		}
		return claimRowFromFields(seq, symbol), nil
	}

	var named namedClaimRow
	if err := json.Unmarshal(raw, &named); err != nil {
		return row, fmt.Errorf("unrecognized row encoding: %w", err)
	}
	row.Account = named.Account
	row.EthAddress = named.EthAddress
	row.Amount = normalizeAmount(named.Amount, symbol)
	row.Migrated = parseFlag(named.Migrated)
	return row, nil
}

// claimRowFromFields extracts semantic fields from a positional sequence.
func claimRowFromFields(seq []json.RawMessage, symbol string) claimRow {
	var row claimRow
	if len(seq) > 0 {
		_ = json.Unmarshal(seq[0], &row.Account)
	}
	var amount json.RawMessage
	if len(seq) > 1 {
		amount = seq[1]
	}
	row.Amount = normalizeAmount(amount, symbol)
	if len(seq) > 2 {
		_ = json.Unmarshal(seq[2], &row.EthAddress)
	}
	if len(seq) > 3 {
		row.Migrated = parseFlag(seq[3])
	}
	return row
}

// normalizeAmount reduces the amount field to a display string. It may be a
// plain string, a structured asset exposing a quantity, or absent entirely.
func normalizeAmount(raw json.RawMessage, symbol string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "0.0000 " + symbol
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "0.0000 " + symbol
		}
		return s
	}

	var asset struct {
		Quantity string `json:"quantity"`
	}
	if err := json.Unmarshal(raw, &asset); err == nil && asset.Quantity != "" {
		return asset.Quantity
	}

	// Bare numeric amounts carry no symbol of their own.
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String() + " " + symbol
	}

	return "0.0000 " + symbol
}

// parseFlag reads a migrated flag that may be encoded as a bool or as the
// integers 0/1.
func parseFlag(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}
