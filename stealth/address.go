package stealth

import (
	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

var ErrDerivationMismatch = errors.New(
	"recomputed stealth public key does not match the claimed address",
)

// deriveTweak computes the scalar offset relating a meta-address to one
// stealth payment: H(ECDH(localPriv, remotePub)) reduced mod the group
// order. Sender and recipient reach the same tweak from opposite key halves.
func deriveTweak(
	localPrivateKey []byte,
	remotePublicKey []byte,
) (*edwards25519.Scalar, error) {
	s, err := scalarFromBytes(localPrivateKey)
	if err != nil {
		return nil, err
	}

	p, err := pointFromBytes(remotePublicKey)
	if err != nil {
		return nil, err
	}

	return hashToScalar(pointToSharedSecret(s, p)), nil
}

// DeriveStealthPublicKey is the sender path: given the recipient's
// meta-address and a fresh ephemeral private key, compute the one-time
// stealth public key spendPub + tweak*G. Because the tweak depends on the
// per-payment ephemeral key, two payments to the same meta-address are
// unlinkable without the view key.
func DeriveStealthPublicKey(
	meta *MetaAddress,
	ephemeralPrivateKey []byte,
) ([]byte, error) {
	tweak, err := deriveTweak(ephemeralPrivateKey, meta.ViewPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive stealth public key")
	}

	spendPub, err := pointFromBytes(meta.SpendPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive stealth public key")
	}

	stealthPub := new(edwards25519.Point).Add(
		spendPub,
		publicPoint(tweak),
	)
	return stealthPub.Bytes(), nil
}

// RecoverStealthScalar is the recipient path: reconstruct the one-time
// signing scalar (spendPriv + tweak) mod L and verify its public point
// against the claimed stealth address before trusting it. A mismatch
// indicates a corrupted payload or protocol violation and aborts with
// ErrDerivationMismatch.
func RecoverStealthScalar(
	spendPrivateKey []byte,
	viewPrivateKey []byte,
	ephemeralPublicKey []byte,
	stealthAddress []byte,
) ([]byte, error) {
	tweak, err := deriveTweak(viewPrivateKey, ephemeralPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "recover stealth scalar")
	}

	spend, err := scalarFromBytes(spendPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "recover stealth scalar")
	}

	claimed, err := pointFromBytes(stealthAddress)
	if err != nil {
		return nil, errors.Wrap(err, "recover stealth scalar")
	}

	scalar := edwards25519.NewScalar().Add(spend, tweak)
	if publicPoint(scalar).Equal(claimed) != 1 {
		return nil, errors.Wrap(ErrDerivationMismatch, "recover stealth scalar")
	}

	return scalar.Bytes(), nil
}
