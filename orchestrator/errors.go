package orchestrator

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrActionPending is returned when the same action on the same target is already in flight.
var ErrActionPending = errors.New("action already pending")

// ValidationError is an input rejected before anything is sent to the chain.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SimulationRevertError is a dry run that failed. Nothing was signed.
type SimulationRevertError struct {
	Reason string
	Err    error
}

func (e *SimulationRevertError) Error() string {
	return "simulation failed: " + e.Reason
}

func (e *SimulationRevertError) Unwrap() error {
	return e.Err
}

// SubmissionFailedError is a failure after the dry run succeeded: signing, sending, or a
// reverted receipt. TxHash is zero when nothing was sent.
type SubmissionFailedError struct {
	Reason string
	TxHash common.Hash
	Err    error
}

func (e *SubmissionFailedError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return "submission failed: " + e.Reason
	}

	return fmt.Sprintf("submission of tx %s failed: %s", e.TxHash.Hex(), e.Reason)
}

func (e *SubmissionFailedError) Unwrap() error {
	return e.Err
}
