package revert

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcErr mimics the JSON-RPC error type of go-ethereum.
type rpcErr struct {
	code int
	msg  string
	data any
}

func (e *rpcErr) Error() string  { return e.msg }
func (e *rpcErr) ErrorCode() int { return e.code }
func (e *rpcErr) ErrorData() any { return e.data }

// errorString packs reason the way Solidity encodes require messages.
func errorString(t *testing.T, reason string) string {
	t.Helper()

	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)

	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func TestDecode(t *testing.T) {
	t.Parallel()

	alreadyVoted := errorString(t, "Already voted")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: Unknown,
		},
		{
			name: "user rejection by code",
			err:  &rpcErr{code: 4001, msg: "MetaMask Tx Signature: something"},
			want: RejectedByUser,
		},
		{
			name: "user rejection by message",
			err:  errors.New("MetaMask Tx Signature: User denied transaction signature."),
			want: RejectedByUser,
		},
		{
			name: "user rejection wrapped",
			err:  fmt.Errorf("submit vote: %w", &rpcErr{code: 4001, msg: "rejected"}),
			want: RejectedByUser,
		},
		{
			name: "nested message with reason string",
			err: &rpcErr{code: -32603, msg: "Internal JSON-RPC error.", data: map[string]any{
				"message": "Error: VM Exception while processing transaction: reverted with reason string 'Not registered'",
			}},
			want: "Not registered",
		},
		{
			name: "nested message with quoted revert",
			err: &rpcErr{code: -32603, msg: "Internal JSON-RPC error.", data: map[string]any{
				"message": `execution reverted: "Election not found"`,
			}},
			want: "Election not found",
		},
		{
			name: "nested message with unquoted revert",
			err: &rpcErr{code: -32603, msg: "Internal JSON-RPC error.", data: map[string]any{
				"message": "execution reverted: Only owner can create elections",
			}},
			want: "Only owner can create elections",
		},
		{
			name: "nested message without pattern is returned raw",
			err: &rpcErr{code: -32603, msg: "Internal JSON-RPC error.", data: map[string]any{
				"message": "nonce too low",
			}},
			want: "nonce too low",
		},
		{
			name: "hex payload as error data",
			err:  &rpcErr{code: 3, msg: "execution reverted", data: alreadyVoted},
			want: "Already voted",
		},
		{
			name: "hex payload nested under data",
			err:  &rpcErr{code: -32603, msg: "Internal error", data: map[string]any{"data": alreadyVoted}},
			want: "Already voted",
		},
		{
			name: "hex payload as bytes",
			err:  &rpcErr{code: 3, msg: "execution reverted", data: hexutil.MustDecode(alreadyVoted)},
			want: "Already voted",
		},
		{
			name: "hex payload wrapped",
			err:  fmt.Errorf("estimate gas: %w", &rpcErr{code: 3, msg: "execution reverted", data: alreadyVoted}),
			want: "Already voted",
		},
		{
			name: "malformed payload falls back to trailing text",
			err: &rpcErr{code: 3, msg: "execution reverted", data: "0x08c379a0" +
				strings.Repeat("f", 64) + strings.Repeat("f", 64) + "4f6e6c79206f776e6572000000"},
			want: "Only owner",
		},
		{
			name: "short payload falls through to the message",
			err:  &rpcErr{code: 3, msg: "execution reverted: Invalid candidate", data: "0x08c379a0"},
			want: "Invalid candidate",
		},
		{
			name: "reason string in message",
			err:  errors.New("Error: VM Exception while processing transaction: reverted with reason string 'Already voted'"),
			want: "Already voted",
		},
		{
			name: "quoted execution reverted",
			err:  errors.New(`execution reverted: "Invalid election"` + "\nsome trailer"),
			want: "Invalid election",
		},
		{
			name: "plain execution reverted",
			err:  errors.New("execution reverted: Only owner can perform this action"),
			want: "Only owner can perform this action",
		},
		{
			name: "double quoted reason string",
			err:  errors.New(`call failed with reason string "Voter already registered"`),
			want: "Voter already registered",
		},
		{
			name: "bare revert",
			err:  errors.New("transaction failed: revert Not registered"),
			want: "Not registered",
		},
		{
			name: "raw message",
			err:  errors.New("connection refused"),
			want: "connection refused",
		},
		{
			name: "empty message",
			err:  errors.New("   "),
			want: Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Decode(tt.err))
		})
	}
}

func TestDecode_reasonStringPropertyAcrossShapes(t *testing.T) {
	t.Parallel()

	reasons := []string{"Already voted", "x", "Only owner can perform this action", "Résultat invalide", "100%"}
	shapes := []func(r string) error{
		func(r string) error {
			return fmt.Errorf("reverted with reason string '%s'", r)
		},
		func(r string) error {
			return fmt.Errorf("Error: VM Exception while processing transaction: reverted with reason string '%s'", r)
		},
		func(r string) error {
			return &rpcErr{code: -32603, msg: "Internal JSON-RPC error.", data: map[string]any{
				"message": fmt.Sprintf("reverted with reason string '%s'", r),
			}}
		},
		func(r string) error {
			return fmt.Errorf("send: %w", &rpcErr{code: -32000, msg: fmt.Sprintf("reverted with reason string '%s'", r)})
		},
	}

	for _, r := range reasons {
		for i, shape := range shapes {
			assert.Equal(t, r, Decode(shape(r)), "reason %q shape %d", r, i)
		}
	}
}

func TestDecode_deterministic(t *testing.T) {
	t.Parallel()

	err := &rpcErr{code: 3, msg: "execution reverted: Already voted", data: errorString(t, "Already voted")}
	first := Decode(err)
	for range 10 {
		assert.Equal(t, first, Decode(err))
	}
}

func TestIsUserRejection(t *testing.T) {
	t.Parallel()

	assert.False(t, IsUserRejection(nil))
	assert.True(t, IsUserRejection(&rpcErr{code: UserRejectedCode, msg: "declined"}))
	assert.True(t, IsUserRejection(errors.New("User denied account access")))
	assert.False(t, IsUserRejection(errors.New("execution reverted")))
}
