package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/modelgate/modelgate/pkg/logger"
)

// Config describes the EVM endpoint the gate verifies payments against.
type Config struct {
	RPCURL         string
	Network        string
	ChainID        int64
	Confirmations  uint64
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

const (
	defaultPollInterval   = 3 * time.Second
	defaultConfirmTimeout = 2 * time.Minute
)

// EthereumClient implements Client over a go-ethereum RPC connection.
type EthereumClient struct {
	eth            *ethclient.Client
	chainID        *big.Int
	network        string
	confirmations  uint64
	confirmTimeout time.Duration
	heads          *HeadWatcher
	log            *zap.Logger
}

var _ Client = (*EthereumClient)(nil)

// NewEthereumClient dials the RPC endpoint and verifies the chain id matches
// the configured network, so a misconfigured endpoint fails at startup.
func NewEthereumClient(ctx context.Context, cfg Config) (*EthereumClient, error) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return nil, errors.New("ledger: rpc url is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: rpc dial: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("ledger: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("ledger: endpoint reports chain id %s, config expects %d", chainID, cfg.ChainID)
	}

	log := logger.WithModule("ledger")

	return &EthereumClient{
		eth:            eth,
		chainID:        chainID,
		network:        cfg.Network,
		confirmations:  cfg.Confirmations,
		confirmTimeout: cfg.ConfirmTimeout,
		heads:          NewHeadWatcher(eth, cfg.PollInterval, log),
		log:            log,
	}, nil
}

// PaymentByRef resolves a transaction by hash and recovers its sender.
func (c *EthereumClient) PaymentByRef(ctx context.Context, txRef string) (*Payment, bool, error) {
	hash, err := parseTxRef(txRef)
	if err != nil {
		return nil, false, err
	}

	tx, pending, err := c.eth.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, false, ErrTxNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: transaction lookup: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return nil, false, fmt.Errorf("ledger: recover sender: %w", err)
	}

	recipient := ""
	if to := tx.To(); to != nil {
		recipient = to.Hex()
	}

	return &Payment{
		TxReference: hash.Hex(),
		Sender:      sender.Hex(),
		Recipient:   recipient,
		Amount:      new(big.Int).Set(tx.Value()),
	}, pending, nil
}

// AwaitConfirmation waits for the transaction receipt and the configured
// number of confirmations. The wait is cooperative: it wakes on new heads
// (or a polling tick) and never holds a lock, so concurrent verifications
// proceed independently. A server-side bound caps the wait even when the
// original caller has disconnected.
func (c *EthereumClient) AwaitConfirmation(ctx context.Context, txRef string) (*Payment, error) {
	hash, err := parseTxRef(txRef)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	heads := c.heads.Watch(ctx)

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet; wait for the next block.
		case err != nil:
			if ctx.Err() != nil {
				return nil, ErrConfirmationTimeout
			}
			return nil, fmt.Errorf("ledger: receipt lookup: %w", err)
		default:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, ErrTxReverted
			}
			confirmed, err := c.hasConfirmations(ctx, receipt)
			if err != nil {
				return nil, err
			}
			if confirmed {
				payment, pending, err := c.PaymentByRef(ctx, txRef)
				if err != nil {
					return nil, err
				}
				if !pending {
					payment.BlockNumber = receipt.BlockNumber.Uint64()
					return payment, nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, ErrConfirmationTimeout
		case _, ok := <-heads:
			if !ok {
				return nil, ErrConfirmationTimeout
			}
		}
	}
}

func (c *EthereumClient) hasConfirmations(ctx context.Context, receipt *types.Receipt) (bool, error) {
	if c.confirmations <= 1 {
		return true, nil
	}

	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ErrConfirmationTimeout
		}
		return false, fmt.Errorf("ledger: block number: %w", err)
	}

	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= c.confirmations, nil
}

// Network returns the configured network identifier (e.g. "sepolia").
func (c *EthereumClient) Network() string { return c.network }

// ChainID returns the chain id reported by the endpoint.
func (c *EthereumClient) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close releases the RPC connection.
func (c *EthereumClient) Close() { c.eth.Close() }

func parseTxRef(txRef string) (common.Hash, error) {
	ref := strings.TrimSpace(txRef)
	if !strings.HasPrefix(ref, "0x") || len(ref) != 66 {
		return common.Hash{}, ErrTxNotFound
	}
	return common.HexToHash(ref), nil
}
