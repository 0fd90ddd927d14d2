package claim

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/louissarvin/kage-sub000/stealth"
)

// MessageSize is the length of the signed claim message:
// positionId(8,LE) || nullifier(32) || destination(32).
const MessageSize = 72

// BuildMessage constructs the claim message the stealth signer signs and the
// ledger reconstructs to verify ownership.
func BuildMessage(
	positionID uint64,
	nullifier stealth.Nullifier,
	destination []byte,
) ([]byte, error) {
	if len(destination) != stealth.KeySize {
		return nil, errors.Wrap(stealth.ErrKeyFormat, "build claim message")
	}

	message := make([]byte, MessageSize)
	binary.LittleEndian.PutUint64(message, positionID)
	copy(message[8:40], nullifier.Bytes())
	copy(message[40:72], destination)
	return message, nil
}
