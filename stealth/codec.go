package stealth

import (
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// EncodeAddress renders a raw 32-byte key in the ledger's base58 address
// encoding.
func EncodeAddress(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", errors.Wrap(ErrKeyFormat, "encode address")
	}

	return base58.Encode(key), nil
}

// DecodeAddress parses a base58 ledger address back to its raw 32 bytes.
func DecodeAddress(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, errors.Wrap(ErrKeyFormat, "decode address")
	}

	if len(raw) != KeySize {
		return nil, errors.Wrap(ErrKeyFormat, "decode address")
	}

	return raw, nil
}
