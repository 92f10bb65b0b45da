package evm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RPC is a single JSON-RPC endpoint of the chain.
type RPC struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// ToEndpoint validates the endpoint URL and returns it. Both http(s) and ws(s) endpoints are
// accepted.
func (r RPC) ToEndpoint() (string, error) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return "", fmt.Errorf("rpc %q: url is required", r.Name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("rpc %q: invalid url: %w", r.Name, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
		return raw, nil
	default:
		return "", fmt.Errorf("rpc %q: unsupported url scheme %q", r.Name, u.Scheme)
	}
}

// RPCConfig is the RPC configuration of a chain: its EVM chain id and the endpoints to use, the
// first being preferred.
type RPCConfig struct {
	ChainID uint64
	RPCs    []RPC
}

func (c RPCConfig) validate() error {
	if c.ChainID == 0 {
		return errors.New("chain id is required")
	}
	if len(c.RPCs) == 0 {
		return errors.New("no RPCs provided, need at least one")
	}

	return nil
}
