package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Client wraps Ethereum client functionality for the destination chain. The
// signing key is optional: a keyless client can serve balance reads and
// health checks but refuses to issue.
type Client struct {
	ethClient   *ethclient.Client
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
	logger      *zap.Logger
}

// NewClient connects to the destination chain RPC endpoint. privateKeyHex
// may be empty for a read-only client.
func NewClient(rpcEndpoint, privateKeyHex string, logger *zap.Logger) (*Client, error) {
	ethClient, err := ethclient.Dial(rpcEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", rpcEndpoint, err)
	}

	c := &Client{
		ethClient: ethClient,
		logger:    logger,
	}

	if privateKeyHex != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("failed to cast public key to ECDSA")
		}
		c.privateKey = privateKey
		c.fromAddress = crypto.PubkeyToAddress(*publicKey)

		logger.Info("EVM client initialized with signer",
			zap.String("operator_address", c.fromAddress.Hex()))
	} else {
		logger.Warn("EVM client initialized without signing key, issuance disabled")
	}

	return c, nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.ethClient.Close()
}

// HasSigner reports whether a signing key is configured.
func (c *Client) HasSigner() bool {
	return c.privateKey != nil
}

// OperatorAddress returns the signer's address, zero when keyless.
func (c *Client) OperatorAddress() common.Address {
	return c.fromAddress
}

// ChainID returns the chain ID from the network
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// CallContract executes a read-only contract call
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, nil)
}

// GetTransactionReceipt gets the receipt for a transaction
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.ethClient.TransactionReceipt(ctx, txHash)
}

// SignAndSendTransaction estimates gas, signs, and submits a transaction.
// The gas estimate gets a 20% safety buffer. A non-nil error here means the
// transaction was never accepted by the node.
func (c *Client) SignAndSendTransaction(
	ctx context.Context,
	to common.Address,
	data []byte,
	value *big.Int,
) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, fmt.Errorf("no signing key configured")
	}

	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain ID: %w", err)
	}

	nonce, err := c.ethClient.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.ethClient.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	gasLimit, err := c.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.fromAddress,
		To:    &to,
		Data:  data,
		Value: value,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	// Add 20% buffer
	gasLimit = gasLimit * 120 / 100

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent",
		zap.String("tx_hash", signedTx.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit))

	return signedTx.Hash(), nil
}

// WaitForTransaction waits for a transaction to be mined. One block
// inclusion is sufficient; no reorg depth is required. A timeout here does
// not mean the transaction failed, only that its fate is unknown.
func (c *Client) WaitForTransaction(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for transaction %s", txHash.Hex())
		case <-ticker.C:
			receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
			if err == nil && receipt != nil {
				return receipt, nil
			}
			// Transaction not yet mined, continue waiting
		}
	}
}
