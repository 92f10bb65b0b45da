package wallet

import (
	"errors"
	"fmt"
)

// UserRejectedCode is the EIP-1193 code of a request declined by the user.
const UserRejectedCode = 4001

var (
	// ErrNoProvider is returned by Connect when no wallet provider is configured.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrNoAccount is returned when an account is needed and none is connected.
	ErrNoAccount = errors.New("no account connected")
	// ErrUserRejected matches every *UserRejectedError.
	ErrUserRejected = errors.New("user rejected the request")
)

// UserRejectedError is returned when the wallet holder declines a request.
type UserRejectedError struct {
	// Action is what was declined, e.g. "account access".
	Action string
}

func (e *UserRejectedError) Error() string {
	return "user denied " + e.Action
}

// ErrorCode returns the EIP-1193 user rejection code.
func (e *UserRejectedError) ErrorCode() int {
	return UserRejectedCode
}

func (e *UserRejectedError) Is(target error) bool {
	return target == ErrUserRejected
}

// ProviderError wraps any other failure of the wallet provider.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// classify maps a provider failure to a UserRejectedError or a ProviderError.
func classify(op string, err error) error {
	var rejected *UserRejectedError
	if errors.As(err, &rejected) {
		return rejected
	}
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) && coded.ErrorCode() == UserRejectedCode {
		return &UserRejectedError{Action: op}
	}

	return &ProviderError{Op: op, Err: err}
}
