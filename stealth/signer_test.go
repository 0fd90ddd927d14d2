package stealth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louissarvin/kage-sub000/types/crypto"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	recipient, err := GenerateMetaKeyPair()
	require.NoError(t, err)
	eph, err := GenerateEphemeralKeyPair()
	require.NoError(t, err)

	stealthAddress, err := DeriveStealthPublicKey(
		&recipient.MetaAddress,
		eph.EphemeralPrivateKey,
	)
	require.NoError(t, err)

	scalar, err := RecoverStealthScalar(
		recipient.SpendPrivateKey,
		recipient.ViewPrivateKey,
		eph.EphemeralPublicKey,
		stealthAddress,
	)
	require.NoError(t, err)

	signer, err := NewSigner(scalar)
	require.NoError(t, err)
	assert.Equal(t, stealthAddress, signer.Public())
	return signer
}

func TestSigner_SignVerify(t *testing.T) {
	signer := newTestSigner(t)

	message := []byte("claim authorization")
	signature, err := signer.Sign(message)
	require.NoError(t, err)
	require.Len(t, signature, SignatureSize)

	assert.True(t, Verify(signer.Public(), message, signature))

	// Signatures must also verify under the standard library, since the
	// external verifier treats the stealth address as an Ed25519 key.
	assert.True(t, ed25519.Verify(
		ed25519.PublicKey(signer.Public()),
		message,
		signature,
	))
}

func TestSigner_Deterministic(t *testing.T) {
	signer := newTestSigner(t)

	message := []byte("same message")
	first, err := signer.Sign(message)
	require.NoError(t, err)
	second, err := signer.Sign(message)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSigner_RandomMessages(t *testing.T) {
	signer := newTestSigner(t)

	for i := 0; i < 100; i++ {
		message := make([]byte, 72)
		_, err := rand.Read(message)
		require.NoError(t, err)

		signature, err := signer.Sign(message)
		require.NoError(t, err)
		assert.True(t, ed25519.Verify(
			ed25519.PublicKey(signer.Public()),
			message,
			signature,
		))
	}
}

func TestVerify_Rejections(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)

	message := []byte("claim authorization")
	signature, err := signer.Sign(message)
	require.NoError(t, err)

	assert.False(t, Verify(other.Public(), message, signature))
	assert.False(t, Verify(signer.Public(), []byte("different message"), signature))

	tampered := append([]byte{}, signature...)
	tampered[0] ^= 0x01
	assert.False(t, Verify(signer.Public(), message, tampered))

	assert.False(t, Verify(signer.Public(), message, signature[:SignatureSize-1]))
	assert.False(t, Verify([]byte{0x01}, message, signature))
}

func TestSigner_GetType(t *testing.T) {
	signer := newTestSigner(t)
	assert.Equal(t, crypto.KeyTypeEd25519, signer.GetType())
}

func TestNewSigner_RejectsBadScalar(t *testing.T) {
	_, err := NewSigner([]byte{0x01, 0x02})
	assert.Error(t, err)

	// Non-canonical scalar encoding (all bits set exceeds the group order)
	nonCanonical := make([]byte, KeySize)
	for i := range nonCanonical {
		nonCanonical[i] = 0xff
	}
	_, err = NewSigner(nonCanonical)
	assert.Error(t, err)
}
