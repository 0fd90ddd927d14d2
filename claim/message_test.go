package claim

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louissarvin/kage-sub000/stealth"
)

func TestBuildMessage(t *testing.T) {
	var nullifier stealth.Nullifier
	for i := range nullifier {
		nullifier[i] = byte(i)
	}
	destination := make([]byte, stealth.KeySize)
	for i := range destination {
		destination[i] = byte(0xff - i)
	}

	message, err := BuildMessage(42, nullifier, destination)
	require.NoError(t, err)
	require.Len(t, message, MessageSize)

	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(message[:8]))
	assert.Equal(t, nullifier.Bytes(), message[8:40])
	assert.Equal(t, destination, message[40:72])
}

func TestBuildMessage_RejectsBadDestination(t *testing.T) {
	_, err := BuildMessage(1, stealth.Nullifier{}, []byte{0x01})
	assert.ErrorIs(t, err, stealth.ErrKeyFormat)
}
