package ledger

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key returns a deterministic private key for index i.
func Key(i int) *ecdsa.PrivateKey {
	seed := make([]byte, 8)
	binary.BigEndian.PutUint64(seed, uint64(i)+1)
	key, err := crypto.ToECDSA(crypto.Keccak256(seed))
	if err != nil {
		panic(err)
	}

	return key
}

// HexKey returns the hex encoded private key for index i, without 0x prefix.
func HexKey(i int) string {
	return hex.EncodeToString(crypto.FromECDSA(Key(i)))
}

// Account returns the address of the key for index i.
func Account(i int) common.Address {
	return crypto.PubkeyToAddress(Key(i).PublicKey)
}
