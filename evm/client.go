// Package evm connects the swap pipeline to an EVM chain: it reads
// balances and allowances, signs approvals and router swaps, and waits for
// their receipts.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/defistate/swapintent-go/approval"
	"github.com/defistate/swapintent-go/currency"
	"github.com/defistate/swapintent-go/executor"
	"github.com/defistate/swapintent-go/txhistory"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	defaultPollInterval   = 2 * time.Second
	defaultReceiptTimeout = 10 * time.Minute
)

var (
	// ErrCannotSucceed is returned when a transaction fails gas estimation.
	ErrCannotSucceed = errors.New("transaction cannot succeed")
	// ErrTransactionFailed is returned for a mined transaction with status 0.
	ErrTransactionFailed = errors.New("transaction failed")
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Backend is the part of ethclient.Client the adapter uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Config holds the configuration for the Client.
type Config struct {
	// PrivateKey is the hex encoded signing key, with or without 0x.
	PrivateKey string
	// Wallet names the signer in analytics, such as "swapctl".
	Wallet string
	Logger Logger
	// PollInterval and ReceiptTimeout tune WaitReceipt.
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
}

func (c *Config) validate() error {
	if c.PrivateKey == "" {
		return errors.New("config: PrivateKey is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	return nil
}

// Client wraps a chain backend and a signing key.
type Client struct {
	backend        Backend
	closer         func()
	privateKey     *ecdsa.PrivateKey
	fromAddress    common.Address
	chainID        *big.Int
	wallet         string
	pollInterval   time.Duration
	receiptTimeout time.Duration
	logger         Logger
}

var (
	_ approval.TokenContract   = (*Client)(nil)
	_ executor.Submitter       = (*Client)(nil)
	_ executor.AccountProvider = (*Client)(nil)
)

// Dial connects to rpcURL and builds a Client on it.
func Dial(ctx context.Context, rpcURL string, cfg Config) (*Client, error) {
	ethClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint %s: %w", rpcURL, err)
	}
	c, err := NewClient(ctx, ethClient, cfg)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	c.closer = ethClient.Close
	return c, nil
}

// NewClient builds a Client on backend. The chain id is read once.
func NewClient(ctx context.Context, backend Backend, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	fromAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	receiptTimeout := cfg.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}

	cfg.Logger.Info("EVM client initialized", "chain_id", chainID, "address", fromAddress.Hex())

	return &Client{
		backend:        backend,
		closer:         func() {},
		privateKey:     privateKey,
		fromAddress:    fromAddress,
		chainID:        chainID,
		wallet:         cfg.Wallet,
		pollInterval:   pollInterval,
		receiptTimeout: receiptTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Close closes the underlying RPC connection, if the client owns it.
func (c *Client) Close() {
	c.closer()
}

// Address returns the signer's address.
func (c *Client) Address() common.Address {
	return c.fromAddress
}

// ChainID returns the chain id read at construction.
func (c *Client) ChainID() uint64 {
	return c.chainID.Uint64()
}

// Account reports the signer as the connected account. It is always
// connected.
func (c *Client) Account(context.Context) (executor.Account, bool) {
	return executor.Account{Address: c.fromAddress, ChainID: c.ChainID(), Wallet: c.wallet}, true
}

// Balance returns owner's balance of cur in smallest units.
func (c *Client) Balance(ctx context.Context, owner common.Address, cur currency.Currency) (*big.Int, error) {
	if cur.Native {
		return c.backend.BalanceAt(ctx, owner, nil)
	}
	return c.callUint(ctx, cur.Address, "balanceOf", owner)
}

// Allowance returns how much spender may move of owner's token.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", owner, spender)
}

func (c *Client) callUint(ctx context.Context, contract common.Address, method string, args ...any) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	out, err := erc20ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, out[0])
	}
	return value, nil
}

// EstimateApprove estimates the gas of approving amount of token to spender.
func (c *Client) EstimateApprove(ctx context.Context, token, spender common.Address, amount *big.Int) (uint64, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return 0, fmt.Errorf("failed to pack approve: %w", err)
	}
	return c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.fromAddress, To: &token, Data: data})
}

// Approve signs and sends an approval with the given gas limit.
func (c *Client) Approve(ctx context.Context, token, spender common.Address, amount *big.Int, gasLimit uint64) (common.Hash, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}
	return c.send(ctx, token, data, new(big.Int), gasLimit)
}

// SubmitSwap encodes the router call for s, estimates it and sends it with
// a 10% gas margin. A failed estimate means the swap would revert.
func (c *Client) SubmitSwap(ctx context.Context, s executor.Swap) (common.Hash, error) {
	call, err := EncodeSwapCall(s.Trade, s.SlippageBps, s.Recipient, s.Deadline)
	if err != nil {
		return common.Hash{}, err
	}
	router := s.Trade.Router()

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  c.fromAddress,
		To:    &router,
		Data:  call.Data,
		Value: call.Value,
	})
	if err != nil {
		c.logger.Warn("Swap gas estimation failed", "method", call.Method, "error", err)
		return common.Hash{}, fmt.Errorf("%w: %s: %w", ErrCannotSucceed, call.Method, err)
	}

	c.logger.Debug("Submitting swap", "method", call.Method, "router", router, "gas", gas)
	return c.send(ctx, router, call.Data, call.Value, approval.GasMargin(gas))
}

func (c *Client) send(ctx context.Context, to common.Address, data []byte, value *big.Int, gasLimit uint64) (common.Hash, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction sent", "hash", signedTx.Hash().Hex(), "to", to.Hex(), "nonce", nonce)
	return signedTx.Hash(), nil
}

// WaitReceipt polls until the transaction is mined or the receipt timeout
// passes. A mined transaction with status 0 returns its receipt and
// ErrTransactionFailed.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (txhistory.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return txhistory.Receipt{}, fmt.Errorf("timeout waiting for transaction %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
			receipt, err := c.backend.TransactionReceipt(ctx, hash)
			if err != nil || receipt == nil {
				if err != nil && !errors.Is(err, ethereum.NotFound) {
					c.logger.Debug("Receipt lookup failed, retrying", "hash", hash.Hex(), "error", err)
				}
				continue
			}
			r := txhistory.Receipt{Status: receipt.Status, BlockNumber: receipt.BlockNumber.Uint64()}
			if receipt.Status == types.ReceiptStatusFailed {
				return r, fmt.Errorf("%w: %s", ErrTransactionFailed, hash.Hex())
			}
			return r, nil
		}
	}
}
