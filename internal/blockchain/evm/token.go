package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// TokenABI covers the surface of the HYPHA token contract this service
// touches: issuance (mint or transfer) and balance reads.
const TokenABI = `[
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "transfer",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "owner", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "balance", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// IssuanceMode selects how tokens reach the destination address.
type IssuanceMode string

const (
	// ModeMint mints new tokens to the recipient.
	ModeMint IssuanceMode = "mint"
	// ModeTransfer transfers tokens from the operator's balance.
	ModeTransfer IssuanceMode = "transfer"
)

// Token provides methods to interact with the deployed token contract.
type Token struct {
	client  *Client
	address common.Address
	mode    IssuanceMode
	abi     abi.ABI
	logger  *zap.Logger
}

// NewToken creates a Token bound to the contract at address.
func NewToken(client *Client, address string, mode IssuanceMode, logger *zap.Logger) (*Token, error) {
	parsedABI, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}
	if mode != ModeMint && mode != ModeTransfer {
		return nil, fmt.Errorf("unknown issuance mode %q", mode)
	}

	return &Token{
		client:  client,
		address: common.HexToAddress(address),
		mode:    mode,
		abi:     parsedABI,
		logger:  logger,
	}, nil
}

// HasSigner reports whether the underlying client can submit transactions.
func (t *Token) HasSigner() bool {
	return t.client.HasSigner()
}

// OperatorAddress returns the issuing address.
func (t *Token) OperatorAddress() common.Address {
	return t.client.OperatorAddress()
}

// Issue submits the mint or transfer call for amount base units to the
// recipient and returns the transaction hash. It does not wait for
// inclusion.
func (t *Token) Issue(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	data, err := t.abi.Pack(string(t.mode), to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s call: %w", t.mode, err)
	}

	txHash, err := t.client.SignAndSendTransaction(ctx, t.address, data, big.NewInt(0))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s transaction: %w", t.mode, err)
	}

	t.logger.Info("Issuance transaction sent",
		zap.String("tx_hash", txHash.Hex()),
		zap.String("mode", string(t.mode)),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()))

	return txHash, nil
}

// WaitMined waits for the issuance transaction to be included in a block.
func (t *Token) WaitMined(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	return t.client.WaitForTransaction(ctx, txHash, timeout)
}

// BalanceOf returns the token balance of an address.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	data, err := t.abi.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf call: %w", err)
	}

	result, err := t.client.CallContract(ctx, ethereum.CallMsg{
		To:   &t.address,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	if len(result) < 32 {
		return nil, fmt.Errorf("invalid balance response length: %d", len(result))
	}

	return new(big.Int).SetBytes(result), nil
}

// Decimals returns the token's decimal precision.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	data, err := t.abi.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals call: %w", err)
	}

	result, err := t.client.CallContract(ctx, ethereum.CallMsg{
		To:   &t.address,
		Data: data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to call decimals: %w", err)
	}

	var decimals uint8
	if err := t.abi.UnpackIntoInterface(&decimals, "decimals", result); err != nil {
		return 0, fmt.Errorf("failed to unpack decimals result: %w", err)
	}
	return decimals, nil
}
