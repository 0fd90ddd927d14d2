package stealth

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Nullifier is the deterministic one-way tag preventing a position from
// being claimed twice. The external ledger persists it as a uniqueness
// record; first use wins.
type Nullifier [32]byte

func (n Nullifier) Bytes() []byte {
	return n[:]
}

// DeriveNullifier computes SHA-256(stealthPublicKey(32) || positionID(8,LE)).
// Identical inputs always yield the identical nullifier; this is what makes
// the ledger's uniqueness constraint serve as the double-claim guard.
func DeriveNullifier(stealthPublicKey []byte, positionID uint64) (Nullifier, error) {
	if len(stealthPublicKey) != KeySize {
		return Nullifier{}, errors.Wrap(ErrKeyFormat, "derive nullifier")
	}

	preimage := make([]byte, KeySize+8)
	copy(preimage, stealthPublicKey)
	binary.LittleEndian.PutUint64(preimage[KeySize:], positionID)

	return sha256.Sum256(preimage), nil
}
