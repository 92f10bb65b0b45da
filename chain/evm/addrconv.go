package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress parses an EVM address string. Surrounding whitespace is ignored and the 0x
// prefix is optional.
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("invalid EVM address format: %q", address)
	}

	return common.HexToAddress(address), nil
}

// ParseAddressList parses a comma separated list of addresses. Entries are trimmed, empty
// entries are skipped and duplicates are removed keeping the first occurrence.
func ParseAddressList(list string) ([]common.Address, error) {
	var (
		out  []common.Address
		seen = make(map[common.Address]struct{})
	)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := ParseAddress(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}

	return out, nil
}
