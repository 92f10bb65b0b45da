package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/votechain/votechain-client/pkg/logger"
)

const (
	// Default retry configuration for RPC calls
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	// Default retry configuration for dialing RPC endpoints
	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	// Default timeout for health checks
	RPCDefaultHealthCheckTimeout = 2 * time.Second

	// executionRevertedCode is the JSON-RPC error code nodes use for reverted calls.
	executionRevertedCode = 3
)

type RetryConfig struct {
	Attempts     uint          `mapstructure:"attempts" yaml:"attempts"`
	Delay        time.Duration `mapstructure:"delay" yaml:"delay"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	DialAttempts uint          `mapstructure:"dial_attempts" yaml:"dial_attempts"`
	DialDelay    time.Duration `mapstructure:"dial_delay" yaml:"dial_delay"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// withDefaults fills every zero field with its default.
func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.Attempts == 0 {
		c.Attempts = d.Attempts
	}
	if c.Delay == 0 {
		c.Delay = d.Delay
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = d.DialAttempts
	}
	if c.DialDelay == 0 {
		c.DialDelay = d.DialDelay
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}

	return c
}

// WithRetryConfig overrides the retry configuration of the MultiClient.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg.withDefaults()
	}
}

var _ OnchainClient = (*MultiClient)(nil)

// MultiClient is an OnchainClient spreading calls over several RPC endpoints of one chain. A
// failing endpoint is retried, then the next one is tried; the endpoint that answered becomes
// the primary.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig

	lggr      logger.Logger
	chainName string
	mu        sync.RWMutex
}

// NewMultiClient dials every endpoint of the config and keeps those that pass a health check.
// The first one kept is the primary.
func NewMultiClient(lggr logger.Logger, rpcsCfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if err := rpcsCfg.validate(); err != nil {
		return nil, err
	}
	mc := &MultiClient{
		RetryConfig: DefaultRetryConfig(),
		lggr:        lggr.Named("rpc"),
		chainName:   ChainName(rpcsCfg.ChainID),
	}
	for _, opt := range opts {
		opt(mc)
	}

	var healthy []*ethclient.Client
	for i, r := range rpcsCfg.RPCs {
		lggr := mc.lggr.With("rpc", r.Name, "index", i, "chain", mc.chainName)
		client, err := mc.dialWithRetry(r)
		if err != nil {
			lggr.Warnw("Skipping RPC, dial failed", "err", err)
			continue
		}
		if err := healthCheck(client); err != nil {
			lggr.Warnw("Skipping RPC, health check failed", "err", err)
			client.Close()

			continue
		}
		healthy = append(healthy, client)
	}
	if len(healthy) == 0 {
		return nil, fmt.Errorf("no healthy RPC endpoint for chain %s (%d)", mc.chainName, rpcsCfg.ChainID)
	}
	mc.Client, mc.Backups = healthy[0], healthy[1:]

	return mc, nil
}

// healthCheck asks the endpoint for the latest block number.
func healthCheck(client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), RPCDefaultHealthCheckTimeout)
	defer cancel()

	if _, err := client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// ChainName returns the name of the chain the client is connected to.
func (mc *MultiClient) ChainName() string {
	return mc.chainName
}

// Close closes every underlying client.
func (mc *MultiClient) Close() {
	for _, c := range mc.clients() {
		c.Close()
	}
}

// withFailover runs call through failover and returns the value of the call that succeeded.
func withFailover[T any](ctx context.Context, mc *MultiClient, method string, call func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var out T
	err := mc.failover(ctx, method, func(ctx context.Context, c *ethclient.Client) error {
		var err error
		out, err = call(ctx, c)

		return err
	})

	return out, err
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.failover(ctx, "eth_sendRawTransaction", func(ctx context.Context, c *ethclient.Client) error {
		return c.SendTransaction(ctx, tx)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return withFailover(ctx, mc, "eth_call", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return withFailover(ctx, mc, "eth_getCode", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return withFailover(ctx, mc, "eth_getCode", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.PendingCodeAt(ctx, account)
	})
}

func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	return withFailover(ctx, mc, "eth_blockNumber", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return withFailover(ctx, mc, "eth_getBlockByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return withFailover(ctx, mc, "eth_gasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return withFailover(ctx, mc, "eth_maxPriorityFeePerGas", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return withFailover(ctx, mc, "eth_getTransactionCount", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return withFailover(ctx, mc, "eth_estimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, call)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return withFailover(ctx, mc, "eth_getLogs", func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, q)
	})
}

func (mc *MultiClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return withFailover(ctx, mc, "eth_subscribe", func(ctx context.Context, c *ethclient.Client) (ethereum.Subscription, error) {
		return c.SubscribeFilterLogs(ctx, q, ch)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return withFailover(ctx, mc, "eth_getTransactionReceipt", func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, txHash)
	})
}

// failover tries op on every endpoint, primary first, retrying each one RetryConfig.Attempts
// times. Answers of the chain (reverts, missing receipts) end the search at once.
func (mc *MultiClient) failover(ctx context.Context, method string, op func(context.Context, *ethclient.Client) error) error {
	lggr := mc.lggr.With("traceID", uuid.NewString(), "chain", mc.chainName, "method", method)

	var lastErr error
	for idx, client := range mc.clients() {
		retries := 0
		err := retry.Do(func() error {
			attemptCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			lastErr = op(attemptCtx, client)
			switch {
			case lastErr == nil:
				return nil
			case isFinal(lastErr):
				return retry.Unrecoverable(lastErr)
			default:
				lggr.Warnw("RPC call failed, retrying", "client", idx, "err", maybeDataErr(lastErr))
				return lastErr
			}
		},
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.Context(ctx),
			retry.OnRetry(func(uint, error) { retries++ }),
		)
		if err == nil {
			if retries > 0 {
				lggr.Infow("RPC call succeeded after retries", "client", idx, "retries", retries)
			}
			mc.promote(idx)

			return nil
		}
		if isFinal(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return errors.Join(lastErr, ctx.Err())
		}
		lggr.Debugw("RPC client exhausted, failing over", "client", idx)
	}

	return errors.Join(lastErr, fmt.Errorf("all RPC clients failed for chain %q", mc.chainName))
}

func (mc *MultiClient) dialWithRetry(r RPC) (*ethclient.Client, error) {
	endpoint, err := r.ToEndpoint()
	if err != nil {
		return nil, err
	}
	lggr := mc.lggr.With("traceID", uuid.NewString(), "chain", mc.chainName, "rpc", r.Name)

	var client *ethclient.Client
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		var derr error
		if client, derr = ethclient.DialContext(ctx, endpoint); derr != nil {
			lggr.Warnw("Dialing RPC failed, retrying", "err", derr)
		}

		return derr
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC %s for chain %s: %w", r.Name, mc.chainName, err)
	}
	lggr.Debugw("Dialed RPC")

	return client, nil
}

// ensureTimeout keeps the deadline of parent when it has one, and otherwise bounds the call
// with timeout.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// promote makes the client at idx (0 is the primary) the new primary. The clients that failed
// before it move to the back of the backups, in order.
func (mc *MultiClient) promote(idx int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if idx < 1 || idx > len(mc.Backups) {
		return
	}
	all := append([]*ethclient.Client{mc.Client}, mc.Backups...)
	mc.Client = all[idx]
	mc.Backups = append(all[idx+1:len(all):len(all)], all[:idx]...)
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

// isFinal reports whether err is an answer of the chain rather than a transport failure.
func isFinal(err error) bool {
	if errors.Is(err, ethereum.NotFound) {
		return true
	}
	var d rpc.DataError
	if errors.As(err, &d) && d.ErrorData() != nil {
		return true
	}
	var e rpc.Error

	return errors.As(err, &e) && e.ErrorCode() == executionRevertedCode
}

// maybeDataErr appends the JSON-RPC error data to the message, where revert payloads live.
func maybeDataErr(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}
