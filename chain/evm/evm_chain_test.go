package evm_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votechain/votechain-client/chain/evm"
)

func TestNewChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		chainID    uint64
		wantName   string
		wantString string
		wantKnown  bool
	}{
		{
			name:       "known chain",
			chainID:    1,
			wantName:   chainsel.ETHEREUM_MAINNET.Name,
			wantString: "ethereum-mainnet (1)",
			wantKnown:  true,
		},
		{
			name:       "unknown chain falls back to the chain id",
			chainID:    987654321987,
			wantName:   "evm-987654321987",
			wantString: "evm-987654321987 (987654321987)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := evm.NewChain(tt.chainID, nil, nil)
			assert.Equal(t, tt.wantName, c.Name())
			assert.Equal(t, tt.wantString, c.String())
			assert.Equal(t, tt.wantKnown, c.Known())
			assert.Equal(t, tt.chainID, c.ID.Uint64())
			if tt.wantKnown {
				assert.Equal(t, chainsel.ETHEREUM_MAINNET.Selector, c.ChainSelector())
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    common.Address
		wantErr bool
	}{
		{
			name:    "checksummed with prefix",
			address: "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8",
			want:    common.HexToAddress("0x742d35cc6634c0532925a3b8d4c8c1b8c4c8c1b8"),
		},
		{
			name:    "without prefix and padded",
			address: "  742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8 ",
			want:    common.HexToAddress("0x742d35cc6634c0532925a3b8d4c8c1b8c4c8c1b8"),
		},
		{
			name:    "too short",
			address: "0x742d35",
			wantErr: true,
		},
		{
			name:    "not hex",
			address: "0xZZ2d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8",
			wantErr: true,
		},
		{
			name:    "empty",
			address: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := evm.ParseAddress(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddressList(t *testing.T) {
	t.Parallel()

	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")

	got, err := evm.ParseAddressList(" 0x1111111111111111111111111111111111111111, ,0x2222222222222222222222222222222222222222,0x1111111111111111111111111111111111111111 ")
	require.NoError(t, err)
	assert.Equal(t, []common.Address{a, b}, got)

	got, err = evm.ParseAddressList(" , ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = evm.ParseAddressList("0x1111111111111111111111111111111111111111,nope")
	require.ErrorContains(t, err, "nope")
}
