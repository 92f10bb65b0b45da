package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// AddressArtifact is the file the deployment script writes the deployed addresses to,
	// keyed by contract name.
	AddressArtifact = "contract-address.json"
)

// ErrNoHandle is returned when no contract address is configured or deployed. The client keeps
// working in a degraded mode where every read is empty and every action fails with it.
var ErrNoHandle = errors.New("contract not available: no address configured or deployed")

// Handle is the immutable pair of a deployed contract address and the interface used to talk
// to it.
type Handle struct {
	Address        common.Address
	ABI            abi.ABI
	TypeAndVersion TypeAndVersion
}

// HandleConfig says where the handle comes from.
type HandleConfig struct {
	// Name is the contract name used as key in the artifacts, e.g. "Voting".
	Name string
	// Address takes precedence over the artifacts when set.
	Address string
	// ArtifactDir holds contract-address.json and "<Name>.json".
	ArtifactDir string
	// TypeAndVersion defaults to "<Name> 1.0.0".
	TypeAndVersion string
	// FallbackABI is used when no "<Name>.json" artifact is found.
	FallbackABI string
}

// LoadHandle resolves the contract address and interface. It returns ErrNoHandle when no
// address can be found.
func LoadHandle(cfg HandleConfig) (*Handle, error) {
	if cfg.Name == "" {
		return nil, errors.New("contract name is required")
	}

	addr, err := resolveAddress(cfg)
	if err != nil {
		return nil, err
	}

	parsed, err := resolveABI(cfg)
	if err != nil {
		return nil, err
	}

	tvStr := cfg.TypeAndVersion
	if tvStr == "" {
		tvStr = cfg.Name + " 1.0.0"
	}
	tv, err := TypeAndVersionFromString(tvStr)
	if err != nil {
		return nil, err
	}

	return &Handle{Address: addr, ABI: parsed, TypeAndVersion: tv}, nil
}

func resolveAddress(cfg HandleConfig) (common.Address, error) {
	raw := strings.TrimSpace(cfg.Address)
	if raw == "" && cfg.ArtifactDir != "" {
		fromFile, err := readAddressArtifact(filepath.Join(cfg.ArtifactDir, AddressArtifact), cfg.Name)
		if err != nil {
			return common.Address{}, err
		}
		raw = fromFile
	}
	if raw == "" {
		return common.Address{}, ErrNoHandle
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid contract address %q", raw)
	}

	return common.HexToAddress(raw), nil
}

func readAddressArtifact(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	var addresses map[string]string
	if err := json.Unmarshal(data, &addresses); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}

	return strings.TrimSpace(addresses[name]), nil
}

func resolveABI(cfg HandleConfig) (abi.ABI, error) {
	if cfg.ArtifactDir != "" {
		path := filepath.Join(cfg.ArtifactDir, cfg.Name+".json")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			var artifact struct {
				ABI json.RawMessage `json:"abi"`
			}
			if err := json.Unmarshal(data, &artifact); err != nil {
				return abi.ABI{}, fmt.Errorf("parse %s: %w", path, err)
			}
			if len(artifact.ABI) > 0 {
				parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
				if err != nil {
					return abi.ABI{}, fmt.Errorf("parse abi in %s: %w", path, err)
				}

				return parsed, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return abi.ABI{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if cfg.FallbackABI == "" {
		return abi.ABI{}, fmt.Errorf("no interface found for contract %s", cfg.Name)
	}
	parsed, err := abi.JSON(strings.NewReader(cfg.FallbackABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi for %s: %w", cfg.Name, err)
	}

	return parsed, nil
}
