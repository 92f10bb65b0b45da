// Package config loads the client configuration from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/spf13/viper"

	"github.com/votechain/votechain-client/chain/evm"
	"github.com/votechain/votechain-client/contract"
	"github.com/votechain/votechain-client/contract/voting"
	"github.com/votechain/votechain-client/pkg/logger"
)

// ChainConfig is the chain the contract is deployed on and how to reach it. RPCURL is a
// shorthand for a single endpoint, tried before RPCs.
type ChainConfig struct {
	ChainID        uint64           `mapstructure:"chain_id" yaml:"chain_id"`
	RPCURL         string           `mapstructure:"rpc_url" yaml:"rpc_url,omitempty"`
	RPCs           []evm.RPC        `mapstructure:"rpcs" yaml:"rpcs,omitempty"`
	Retry          *evm.RetryConfig `mapstructure:"retry" yaml:"retry,omitempty"`
	ConfirmTimeout time.Duration    `mapstructure:"confirm_timeout" yaml:"confirm_timeout,omitempty"`
}

// RPCConfig returns the endpoints of the chain, RPCURL first.
func (c ChainConfig) RPCConfig() evm.RPCConfig {
	rpcs := make([]evm.RPC, 0, len(c.RPCs)+1)
	if c.RPCURL != "" {
		rpcs = append(rpcs, evm.RPC{Name: "default", URL: c.RPCURL})
	}

	return evm.RPCConfig{ChainID: c.ChainID, RPCs: append(rpcs, c.RPCs...)}
}

// ContractConfig locates the Voting contract.
type ContractConfig struct {
	// Address takes precedence over the artifacts.
	Address string `mapstructure:"address" yaml:"address,omitempty"`
	// ArtifactDir holds contract-address.json and Voting.json.
	ArtifactDir    string `mapstructure:"artifact_dir" yaml:"artifact_dir,omitempty"`
	TypeAndVersion string `mapstructure:"type_and_version" yaml:"type_and_version,omitempty"`
	// StartBlock is the first block scanned for registration logs.
	StartBlock uint64 `mapstructure:"start_block" yaml:"start_block,omitempty"`
}

// HandleConfig returns the contract.HandleConfig of the Voting contract.
func (c ContractConfig) HandleConfig() contract.HandleConfig {
	return contract.HandleConfig{
		Name:           voting.ContractName,
		Address:        c.Address,
		ArtifactDir:    c.ArtifactDir,
		TypeAndVersion: c.TypeAndVersion,
		FallbackABI:    voting.VotingABI,
	}
}

// WalletConfig is the wallet holding the user's keys. Either raw keys or a keystore is used.
//
// WARNING: This data type contains sensitive fields and should not be logged or set in file
// configuration.
type WalletConfig struct {
	// PrivateKeys are hex encoded, the first is the active account.
	PrivateKeys []string `mapstructure:"private_keys" yaml:"private_keys,omitempty"` // Secret
	KeystoreDir string   `mapstructure:"keystore_dir" yaml:"keystore_dir,omitempty"`
	Passphrase  string   `mapstructure:"passphrase" yaml:"passphrase,omitempty"` // Secret
	// AutoApprove skips the interactive prompts.
	AutoApprove bool   `mapstructure:"auto_approve" yaml:"auto_approve"`
	GasLimit    uint64 `mapstructure:"gas_limit" yaml:"gas_limit,omitempty"`
}

// SyncConfig tunes the local mirror of the contract.
type SyncConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval,omitempty"`
	LogChunkSize     uint64        `mapstructure:"log_chunk_size" yaml:"log_chunk_size,omitempty"`
	VoteRefreshDelay time.Duration `mapstructure:"vote_refresh_delay" yaml:"vote_refresh_delay,omitempty"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level,omitempty"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Logger returns the logger.Config of the log section.
func (c LogConfig) Logger() (logger.Config, error) {
	return logger.ParseConfig(c.Level, c.Development)
}

// Config wraps the entire configuration of the client.
type Config struct {
	Chain    ChainConfig    `mapstructure:"chain" yaml:"chain"`
	Contract ContractConfig `mapstructure:"contract" yaml:"contract"`
	Wallet   WalletConfig   `mapstructure:"wallet" yaml:"wallet"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Chain.ChainID == 0 {
		errs = append(errs, errors.New("chain.chain_id is required"))
	}
	rpcs := c.Chain.RPCConfig().RPCs
	if len(rpcs) == 0 {
		errs = append(errs, errors.New("chain.rpc_url or chain.rpcs is required"))
	}
	for _, r := range rpcs {
		if _, err := r.ToEndpoint(); err != nil {
			errs = append(errs, fmt.Errorf("chain.rpcs: %w", err))
		}
	}
	if c.Contract.Address != "" {
		if _, err := evm.ParseAddress(c.Contract.Address); err != nil {
			errs = append(errs, fmt.Errorf("contract.address: %w", err))
		}
	}
	if c.Contract.TypeAndVersion != "" {
		if _, err := contract.TypeAndVersionFromString(c.Contract.TypeAndVersion); err != nil {
			errs = append(errs, fmt.Errorf("contract.type_and_version: %w", err))
		}
	}
	if len(c.Wallet.PrivateKeys) > 0 && c.Wallet.KeystoreDir != "" {
		errs = append(errs, errors.New("wallet: private_keys and keystore_dir are mutually exclusive"))
	}
	if _, err := c.Log.Logger(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}

// Load loads the config from the file path, falling back to env vars if the file does not exist.
// If the file exists, any env vars that are set will override the values loaded from the file.
func Load(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadEnv loads the config from the environment variables.
func LoadEnv() (*Config, error) {
	v := viper.New()

	if err := bindEnvs(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// LoadFile loads the config from a file.
func LoadFile(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	err := v.Unmarshal(cfg)

	return cfg, err
}

// envBindings maps config keys to the environment variables that can set them. The first name
// is preferred, the second is the legacy name kept for existing deployments.
var envBindings = map[string][]string{
	"chain.chain_id":          {"VOTECHAIN_CHAIN_ID", "CHAIN_ID"},
	"chain.rpc_url":           {"VOTECHAIN_RPC_URL", "RPC_URL"},
	"chain.confirm_timeout":   {"VOTECHAIN_CONFIRM_TIMEOUT"},
	"contract.address":        {"VOTECHAIN_CONTRACT_ADDRESS", "REACT_APP_CONTRACT_ADDRESS"},
	"contract.artifact_dir":   {"VOTECHAIN_CONTRACT_ARTIFACT_DIR"},
	"contract.start_block":    {"VOTECHAIN_CONTRACT_START_BLOCK"},
	"wallet.private_keys":     {"VOTECHAIN_WALLET_PRIVATE_KEYS", "PRIVATE_KEY"},
	"wallet.keystore_dir":     {"VOTECHAIN_WALLET_KEYSTORE_DIR"},
	"wallet.passphrase":       {"VOTECHAIN_WALLET_PASSPHRASE"},
	"wallet.auto_approve":     {"VOTECHAIN_WALLET_AUTO_APPROVE"},
	"sync.poll_interval":      {"VOTECHAIN_SYNC_POLL_INTERVAL"},
	"sync.log_chunk_size":     {"VOTECHAIN_SYNC_LOG_CHUNK_SIZE"},
	"sync.vote_refresh_delay": {"VOTECHAIN_SYNC_VOTE_REFRESH_DELAY"},
	"log.level":               {"VOTECHAIN_LOG_LEVEL", "LOG_LEVEL"},
}

// bindEnvs binds the environment variables to the viper instance.
func bindEnvs(v *viper.Viper) error {
	for key, envs := range envBindings {
		inputs := slices.Insert(envs, 0, key)

		if err := v.BindEnv(inputs...); err != nil {
			return err
		}
	}

	return nil
}
