package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/votechain/votechain-client/chain/evm"
)

var (
	// fileCfg is the config that is loaded from the testdata/config.yml file.
	fileCfg = &Config{
		Chain: ChainConfig{
			ChainID: 11155111,
			RPCURL:  "https://rpc.sepolia.example",
			RPCs:    []evm.RPC{{Name: "backup", URL: "wss://ws.sepolia.example"}},
			Retry: &evm.RetryConfig{
				Attempts:     3,
				Delay:        500 * time.Millisecond,
				Timeout:      5 * time.Second,
				DialAttempts: 2,
				DialDelay:    time.Second,
				DialTimeout:  10 * time.Second,
			},
			ConfirmTimeout: time.Minute,
		},
		Contract: ContractConfig{
			Address:        "0x5FbDB2315678afecb367f032d93F642f64180aa3",
			ArtifactDir:    "./artifacts",
			TypeAndVersion: "Voting 1.0.0",
			StartBlock:     4200000,
		},
		Wallet: WalletConfig{
			PrivateKeys: []string{"0xabc"},
			AutoApprove: true,
			GasLimit:    300000,
		},
		Sync: SyncConfig{
			PollInterval:     6 * time.Second,
			LogChunkSize:     5000,
			VoteRefreshDelay: time.Second,
		},
		Log: LogConfig{
			Level:       "debug",
			Development: true,
		},
	}

	// envVars is the environment variables that used to set the config.
	envVars = map[string]string{
		"VOTECHAIN_CHAIN_ID":                "1337",
		"VOTECHAIN_RPC_URL":                 "http://127.0.0.1:8545",
		"VOTECHAIN_CONFIRM_TIMEOUT":         "30s",
		"VOTECHAIN_CONTRACT_ADDRESS":        "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"VOTECHAIN_CONTRACT_ARTIFACT_DIR":   "/tmp/artifacts",
		"VOTECHAIN_CONTRACT_START_BLOCK":    "12",
		"VOTECHAIN_WALLET_PRIVATE_KEYS":     "0x123,0x456",
		"VOTECHAIN_WALLET_KEYSTORE_DIR":     "/tmp/keystore",
		"VOTECHAIN_WALLET_PASSPHRASE":       "hunter2",
		"VOTECHAIN_WALLET_AUTO_APPROVE":     "true",
		"VOTECHAIN_SYNC_POLL_INTERVAL":      "2s",
		"VOTECHAIN_SYNC_LOG_CHUNK_SIZE":     "1000",
		"VOTECHAIN_SYNC_VOTE_REFRESH_DELAY": "1s",
		"VOTECHAIN_LOG_LEVEL":               "warn",
	}

	legacyEnvVars = map[string]string{
		"CHAIN_ID":                   "1337",
		"RPC_URL":                    "http://127.0.0.1:8545",
		"REACT_APP_CONTRACT_ADDRESS": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		"PRIVATE_KEY":                "0x123,0x456",
		"LOG_LEVEL":                  "warn",
		// These values do not have a legacy equivalent
		"VOTECHAIN_CONFIRM_TIMEOUT":         "30s",
		"VOTECHAIN_CONTRACT_ARTIFACT_DIR":   "/tmp/artifacts",
		"VOTECHAIN_CONTRACT_START_BLOCK":    "12",
		"VOTECHAIN_WALLET_KEYSTORE_DIR":     "/tmp/keystore",
		"VOTECHAIN_WALLET_PASSPHRASE":       "hunter2",
		"VOTECHAIN_WALLET_AUTO_APPROVE":     "true",
		"VOTECHAIN_SYNC_POLL_INTERVAL":      "2s",
		"VOTECHAIN_SYNC_LOG_CHUNK_SIZE":     "1000",
		"VOTECHAIN_SYNC_VOTE_REFRESH_DELAY": "1s",
	}

	// envCfg is the config that is loaded from the environment variables.
	envCfg = &Config{
		Chain: ChainConfig{
			ChainID:        1337,
			RPCURL:         "http://127.0.0.1:8545",
			ConfirmTimeout: 30 * time.Second,
		},
		Contract: ContractConfig{
			Address:     "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
			ArtifactDir: "/tmp/artifacts",
			StartBlock:  12,
		},
		Wallet: WalletConfig{
			PrivateKeys: []string{"0x123", "0x456"},
			KeystoreDir: "/tmp/keystore",
			Passphrase:  "hunter2",
			AutoApprove: true,
		},
		Sync: SyncConfig{
			PollInterval:     2 * time.Second,
			LogChunkSize:     1000,
			VoteRefreshDelay: time.Second,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
)

func Test_Load(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	tests := []struct {
		name       string
		beforeFunc func(t *testing.T)
		givePath   string
		want       *Config
	}{
		{
			name:     "load from file",
			givePath: "./testdata/config.yml",
			want:     fileCfg,
		},
		{
			name:     "load from empty file",
			givePath: "./testdata/empty.yml",
			want:     &Config{},
		},
		{
			name: "override with env",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, map[string]string{
					"VOTECHAIN_CONTRACT_ADDRESS": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
					"VOTECHAIN_LOG_LEVEL":        "error",
				})
			},
			givePath: "./testdata/config.yml",
			want: func() *Config {
				cfg := *fileCfg
				cfg.Contract.Address = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
				cfg.Log.Level = "error"

				return &cfg
			}(),
		},
		{
			name: "fallback to env when file not found",
			beforeFunc: func(t *testing.T) {
				t.Helper()

				setupEnvVars(t, envVars)
			},
			givePath: "./testdata/invalid.yml",
			want:     envCfg,
		},
	}

	for _, tt := range tests { //nolint:paralleltest // see comment in setupEnvVars
		t.Run(tt.name, func(t *testing.T) {
			if tt.beforeFunc != nil {
				tt.beforeFunc(t)
			}

			got, err := Load(tt.givePath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_LoadFile(t *testing.T) {
	t.Parallel()

	got, err := LoadFile("./testdata/config.yml")
	require.NoError(t, err)
	assert.Equal(t, fileCfg, got)

	_, err = LoadFile("./testdata/invalid.yml")
	require.ErrorContains(t, err, "no such file or directory")
}

func Test_LoadEnv(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, envVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg, got)
}

func Test_LoadEnv_Legacy(t *testing.T) { //nolint:paralleltest // see comment in setupEnvVars
	setupEnvVars(t, legacyEnvVars)

	got, err := LoadEnv()
	require.NoError(t, err)

	assert.Equal(t, envCfg, got)
}

func Test_YAML_Marshal_Unmarshal(t *testing.T) {
	t.Parallel()

	yamlCfg, err := os.ReadFile("./testdata/config.yml")
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(yamlCfg, &cfg))
	assert.Equal(t, *fileCfg, cfg)

	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.YAMLEq(t, string(yamlCfg), string(b))
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Chain:    ChainConfig{ChainID: 1337, RPCURL: "http://127.0.0.1:8545"},
			Contract: ContractConfig{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing chain",
			mutate:  func(c *Config) { c.Chain = ChainConfig{} },
			wantErr: []string{"chain.chain_id is required", "chain.rpc_url or chain.rpcs is required"},
		},
		{
			name:    "bad rpc scheme",
			mutate:  func(c *Config) { c.Chain.RPCs = []evm.RPC{{Name: "ipc", URL: "ipc:///tmp/geth.ipc"}} },
			wantErr: []string{`unsupported url scheme "ipc"`},
		},
		{
			name:    "bad contract address",
			mutate:  func(c *Config) { c.Contract.Address = "0x1234" },
			wantErr: []string{"contract.address"},
		},
		{
			name:    "bad type and version",
			mutate:  func(c *Config) { c.Contract.TypeAndVersion = "Voting" },
			wantErr: []string{"contract.type_and_version"},
		},
		{
			name: "two wallets",
			mutate: func(c *Config) {
				c.Wallet.PrivateKeys = []string{"0xabc"}
				c.Wallet.KeystoreDir = "/tmp"
			},
			wantErr: []string{"mutually exclusive"},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: []string{"log.level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				return
			}
			for _, want := range tt.wantErr {
				require.ErrorContains(t, err, want)
			}
		})
	}
}

func TestChainConfig_RPCConfig(t *testing.T) {
	t.Parallel()

	got := fileCfg.Chain.RPCConfig()
	assert.Equal(t, uint64(11155111), got.ChainID)
	assert.Equal(t, []evm.RPC{
		{Name: "default", URL: "https://rpc.sepolia.example"},
		{Name: "backup", URL: "wss://ws.sepolia.example"},
	}, got.RPCs)
}

func TestLogConfig_Logger(t *testing.T) {
	t.Parallel()

	cfg, err := LogConfig{Level: "warn", Development: true}.Logger()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level)
	assert.True(t, cfg.Development)
}

// setupEnvVars sets up the environment variables for the test.
//
// CAUTION: Because this function uses t.Setenv which affects the entire process, tests which call
// this function cannot be run in parallel.
func setupEnvVars(t *testing.T, envVars map[string]string) {
	t.Helper()

	for key, value := range envVars {
		t.Setenv(key, value)
	}
}
