// Package stealth implements the stealth payment protocol: one-time address
// derivation from a published meta-address, encryption of the ephemeral
// secret needed to recover a one-time address, scalar-domain signing under
// the derived key, payment scanning, and nullifier derivation.
//
// All exported surfaces deal in raw 32-byte scalars and compressed curve
// points; the underlying curve library never crosses the package boundary.
// Every function is pure and safe for concurrent use.
package stealth

import (
	"github.com/pkg/errors"
)

// MetaAddress is a recipient's long-lived published key pair. It carries no
// secret material and is immutable once published.
type MetaAddress struct {
	SpendPublicKey []byte
	ViewPublicKey  []byte
}

// MetaKeyPair is the recipient's full stealth identity. The private halves
// must never leave recipient control.
type MetaKeyPair struct {
	SpendPrivateKey []byte
	ViewPrivateKey  []byte
	MetaAddress     MetaAddress
}

// EphemeralKeyPair is generated fresh by the sender per payment. The private
// half is discarded after encryption and survives only inside the encrypted
// payload.
type EphemeralKeyPair struct {
	EphemeralPrivateKey []byte
	EphemeralPublicKey  []byte
}

// GenerateMetaKeyPair produces a fresh (spend, view) keypair and its public
// meta-address.
func GenerateMetaKeyPair() (*MetaKeyPair, error) {
	spend, err := randomScalar()
	if err != nil {
		return nil, errors.Wrap(err, "generate meta key pair")
	}

	view, err := randomScalar()
	if err != nil {
		return nil, errors.Wrap(err, "generate meta key pair")
	}

	return &MetaKeyPair{
		SpendPrivateKey: spend.Bytes(),
		ViewPrivateKey:  view.Bytes(),
		MetaAddress: MetaAddress{
			SpendPublicKey: publicPoint(spend).Bytes(),
			ViewPublicKey:  publicPoint(view).Bytes(),
		},
	}, nil
}

// GenerateEphemeralKeyPair produces the per-payment sender keypair.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	eph, err := randomScalar()
	if err != nil {
		return nil, errors.Wrap(err, "generate ephemeral key pair")
	}

	return &EphemeralKeyPair{
		EphemeralPrivateKey: eph.Bytes(),
		EphemeralPublicKey:  publicPoint(eph).Bytes(),
	}, nil
}

// PublicKeyFor recomputes the public point of a 32-byte private scalar.
func PublicKeyFor(privateKey []byte) ([]byte, error) {
	s, err := scalarFromBytes(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "public key for")
	}

	return publicPoint(s).Bytes(), nil
}
