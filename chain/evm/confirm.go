package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultConfirmTimeout bounds how long a submitted transaction is waited for.
const DefaultConfirmTimeout = 2 * time.Minute

// ContractCaller is an interface that defines the CallContract method. This is copied from the
// go-ethereum package method to limit the scope of dependencies provided to the functions.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ReceiptRevertedError is returned when a transaction was mined with a failed status. Err holds
// the error returned by replaying the transaction as a call, which usually carries the revert
// payload.
type ReceiptRevertedError struct {
	TxHash      common.Hash
	BlockNumber uint64
	Reason      string
	Err         error
}

func (e *ReceiptRevertedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("tx %s reverted, could not decode error reason", e.TxHash.Hex())
	}

	return fmt.Sprintf("tx %s reverted: %s", e.TxHash.Hex(), e.Reason)
}

func (e *ReceiptRevertedError) Unwrap() error {
	return e.Err
}

// ConfirmFuncGeth returns a ConfirmFunc polling for the receipt every tickInterval until
// waitMinedTimeout elapses.
func ConfirmFuncGeth(client OnchainClient, waitMinedTimeout time.Duration, opts ...func(*confirmFuncGeth)) ConfirmFunc {
	cf := &confirmFuncGeth{
		client:           client,
		tickInterval:     1 * time.Second, // the same value we have in bind.WaitMined hardcoded in "go-ethereum"
		waitMinedTimeout: waitMinedTimeout,
	}
	if cf.waitMinedTimeout <= 0 {
		cf.waitMinedTimeout = DefaultConfirmTimeout
	}
	for _, o := range opts {
		o(cf)
	}

	return cf.confirm
}

func WithTickInterval(interval time.Duration) func(*confirmFuncGeth) {
	return func(o *confirmFuncGeth) {
		o.tickInterval = interval
	}
}

type confirmFuncGeth struct {
	client           OnchainClient
	tickInterval     time.Duration
	waitMinedTimeout time.Duration
}

func (g *confirmFuncGeth) confirm(ctx context.Context, tx *types.Transaction) (uint64, error) {
	if tx == nil {
		return 0, errors.New("tx was nil, nothing to confirm")
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, g.waitMinedTimeout)
	defer cancel()

	receipt, err := WaitMinedWithInterval(ctxTimeout, g.tickInterval, g.client, tx.Hash())
	if err != nil {
		return 0, fmt.Errorf("tx %s failed to confirm: %w", tx.Hash().Hex(), err)
	}
	if receipt == nil {
		return 0, fmt.Errorf("receipt was nil for tx %s", tx.Hash().Hex())
	}

	blockNum := receipt.BlockNumber.Uint64()
	if receipt.Status == types.ReceiptStatusFailed {
		rerr := &ReceiptRevertedError{TxHash: tx.Hash(), BlockNumber: blockNum}
		from, serr := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		if serr == nil {
			rerr.Reason, rerr.Err = getErrorReasonFromTx(ctxTimeout, g.client, from, tx, receipt)
		}

		return blockNum, rerr
	}

	return blockNum, nil
}

// WaitMinedWithInterval is a custom function that allows to get receipts faster for networks with instant blocks
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}

// getErrorReasonFromTx replays tx as a call at the block it was mined in. It returns the
// revert data found in the call error along with the call error itself. An empty reason means
// nothing could be recovered.
func getErrorReasonFromTx(
	ctx context.Context,
	caller ContractCaller,
	from common.Address,
	tx *types.Transaction,
	receipt *types.Receipt,
) (string, error) {
	call := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Data:  tx.Data(),
		Value: tx.Value(),
		Gas:   tx.Gas(),
	}

	_, err := caller.CallContract(ctx, call, receipt.BlockNumber)
	if err == nil {
		return "", nil
	}
	reason, perr := getJSONErrorData(err)
	if perr != nil || reason == "" {
		return err.Error(), err
	}

	return reason, err
}

// getJSONErrorData extracts the error data from a JSON Error.
func getJSONErrorData(err error) (string, error) {
	if err == nil {
		return "", errors.New("cannot parse nil error")
	}

	// Matches the JSON-RPC error of go-ethereum, which is a private type.
	type jsonError interface {
		Error() string
		ErrorCode() int
		ErrorData() any
	}

	var jerr jsonError
	if !errors.As(err, &jerr) {
		return "", fmt.Errorf("error must be of type jsonError: %w", err)
	}

	if jerr.ErrorData() == nil {
		if strings.Contains(jerr.Error(), "missing trie node") {
			return "", errors.New("missing trie node, likely due to not using an archive node")
		}

		return "", nil
	}

	return fmt.Sprintf("%v", jerr.ErrorData()), nil
}
