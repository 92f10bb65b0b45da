package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/pkg/logger"
)

// Call is a state-changing contract call that has not been signed yet.
type Call struct {
	Method string
	Args   []any
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprint(a)
	}

	return fmt.Sprintf("%s(%s)", c.Method, strings.Join(args, ", "))
}

// ReadFailure is returned when a read-only call fails, whatever the reason (revert, access
// restriction, transport).
type ReadFailure struct {
	Method string
	Err    error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("read %s failed: %v", e.Method, e.Err)
}

func (e *ReadFailure) Unwrap() error {
	return e.Err
}

// Binding gives typed access to one deployed contract.
type Binding struct {
	lggr    logger.Logger
	handle  *Handle
	client  evm.OnchainClient
	confirm evm.ConfirmFunc
	bound   *bind.BoundContract
}

// NewBinding binds handle to client. confirm is used to wait for submitted transactions. A nil
// handle yields ErrNoHandle.
func NewBinding(lggr logger.Logger, handle *Handle, client evm.OnchainClient, confirm evm.ConfirmFunc) (*Binding, error) {
	if handle == nil {
		return nil, ErrNoHandle
	}
	if client == nil {
		return nil, errors.New("onchain client is required")
	}
	if confirm == nil {
		confirm = evm.ConfirmFuncGeth(client, evm.DefaultConfirmTimeout)
	}

	return &Binding{
		lggr:    lggr.Named("contract").With("address", handle.Address.Hex(), "contract", handle.TypeAndVersion.String()),
		handle:  handle,
		client:  client,
		confirm: confirm,
		bound:   bind.NewBoundContract(handle.Address, handle.ABI, client, client, client),
	}, nil
}

// Handle returns the handle the binding was built from.
func (b *Binding) Handle() *Handle {
	return b.handle
}

// Query performs a read-only call. When from is set the call is made on behalf of that
// account, which access-restricted methods require.
func (b *Binding) Query(ctx context.Context, from *common.Address, method string, args ...any) ([]any, error) {
	opts := &bind.CallOpts{Context: ctx}
	if from != nil {
		opts.From = *from
	}

	var out []any
	if err := b.bound.Call(opts, &out, method, args...); err != nil {
		return nil, &ReadFailure{Method: method, Err: err}
	}

	return out, nil
}

// Simulate dry-runs call from the given account and returns the gas it needs. A call that
// would revert fails here the same way the real submission would.
func (b *Binding) Simulate(ctx context.Context, from common.Address, call Call) (uint64, error) {
	data, err := b.handle.ABI.Pack(call.Method, call.Args...)
	if err != nil {
		return 0, fmt.Errorf("pack %s: %w", call.Method, err)
	}
	to := b.handle.Address

	gas, err := b.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("simulate %s: %w", call.Method, err)
	}
	b.lggr.Debugw("Simulated call", "call", call.String(), "from", from.Hex(), "gas", gas)

	return gas, nil
}

// Submit signs and sends call, then waits until it is included. The returned transaction is
// set whenever it was sent, even if it later reverted.
func (b *Binding) Submit(ctx context.Context, opts *bind.TransactOpts, call Call) (*types.Transaction, uint64, error) {
	if opts == nil {
		return nil, 0, errors.New("transact opts are required")
	}
	if opts.Context == nil {
		opts.Context = ctx
	}

	tx, err := b.bound.Transact(opts, call.Method, call.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("submit %s: %w", call.Method, err)
	}
	b.lggr.Infow("Transaction sent", "call", call.String(), "from", opts.From.Hex(), "tx", tx.Hash().Hex())

	block, err := b.confirm(ctx, tx)
	if err != nil {
		return tx, block, fmt.Errorf("confirm %s: %w", call.Method, err)
	}
	b.lggr.Infow("Transaction confirmed", "call", call.Method, "tx", tx.Hash().Hex(), "block", block)

	return tx, block, nil
}

// FilterEvents returns the logs of event emitted by the contract between fromBlock and toBlock
// (latest when nil). query restricts the indexed arguments, in order, like the generated
// Filter* methods of abigen bindings.
func (b *Binding) FilterEvents(ctx context.Context, event string, fromBlock uint64, toBlock *uint64, query ...[]any) ([]types.Log, error) {
	ev, ok := b.handle.ABI.Events[event]
	if !ok {
		return nil, fmt.Errorf("event %s not found in contract interface", event)
	}

	topics, err := abi.MakeTopics(query...)
	if err != nil {
		return nil, fmt.Errorf("build topics for %s: %w", event, err)
	}

	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		Addresses: []common.Address{b.handle.Address},
		Topics:    append([][]common.Hash{{ev.ID}}, topics...),
	}
	if toBlock != nil {
		q.ToBlock = new(big.Int).SetUint64(*toBlock)
	}

	logs, err := b.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, &ReadFailure{Method: event, Err: err}
	}

	return logs, nil
}

// UnpackLog decodes a log of event into out, indexed fields included.
func (b *Binding) UnpackLog(out any, event string, log types.Log) error {
	return b.bound.UnpackLog(out, event, log)
}

// LatestBlock returns the number of the latest block.
func (b *Binding) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := b.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, &ReadFailure{Method: "latest block", Err: err}
	}

	return header.Number.Uint64(), nil
}
