package stealth

import (
	"github.com/pkg/errors"
)

// Payment is a publicly observable stealth payment. Only the holder of the
// matching view private key can link it to a meta-address or recover the
// one-time signing key.
type Payment struct {
	StealthAddress     []byte
	EphemeralPublicKey []byte
	EncryptedPayload   []byte
}

// GenerateStealthPayment builds a payment to the given meta-address: a fresh
// ephemeral keypair, the derived one-time address, and the encrypted payload
// carrying the ephemeral private key and note. The ephemeral private key is
// not retained outside the payload.
func GenerateStealthPayment(meta *MetaAddress, note []byte) (*Payment, error) {
	eph, err := GenerateEphemeralKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "generate stealth payment")
	}

	stealthAddress, err := DeriveStealthPublicKey(meta, eph.EphemeralPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "generate stealth payment")
	}

	payload, err := EncryptPayload(
		eph.EphemeralPrivateKey,
		note,
		meta.ViewPublicKey,
	)
	if err != nil {
		return nil, errors.Wrap(err, "generate stealth payment")
	}

	return &Payment{
		StealthAddress:     stealthAddress,
		EphemeralPublicKey: eph.EphemeralPublicKey,
		EncryptedPayload:   payload,
	}, nil
}

// RecoverStealthSigner decrypts a payment's payload, reconstructs the
// one-time signing scalar, and returns a signer whose public key equals the
// payment's stealth address, along with the sender's note. Integrity and
// derivation failures surface distinctly (ErrPayloadIntegrity,
// ErrDerivationMismatch); neither is ever downgraded to a silent non-match.
func RecoverStealthSigner(
	keyPair *MetaKeyPair,
	payment *Payment,
) (*Signer, []byte, error) {
	_, note, err := DecryptPayload(
		payment.EncryptedPayload,
		keyPair.ViewPrivateKey,
		payment.EphemeralPublicKey,
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recover stealth signer")
	}

	scalar, err := RecoverStealthScalar(
		keyPair.SpendPrivateKey,
		keyPair.ViewPrivateKey,
		payment.EphemeralPublicKey,
		payment.StealthAddress,
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recover stealth signer")
	}

	signer, err := NewSigner(scalar)
	if err != nil {
		return nil, nil, errors.Wrap(err, "recover stealth signer")
	}

	return signer, note, nil
}
