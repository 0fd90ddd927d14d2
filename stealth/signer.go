package stealth

import (
	"crypto/ed25519"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"

	"github.com/louissarvin/kage-sub000/types/crypto"
)

var _ crypto.Signer = (*Signer)(nil)

// Signer holds a derived one-time scalar and produces Ed25519 signatures
// directly in the scalar domain. The conventional seed-based keypair API
// cannot be used here: the one-time key is an arithmetic combination of the
// spend key and tweak, not a fresh random seed.
type Signer struct {
	scalar *edwards25519.Scalar
	public *edwards25519.Point
	prefix []byte
}

// NewSigner wraps a 32-byte canonical scalar.
func NewSigner(scalar []byte) (*Signer, error) {
	s, err := scalarFromBytes(scalar)
	if err != nil {
		return nil, errors.Wrap(err, "new signer")
	}

	// Deterministic nonce prefix, standing in for the second half of the
	// SHA-512(seed) expansion a seed-based key would carry.
	digest := sha512.Sum512(scalar)

	return &Signer{
		scalar: s,
		public: publicPoint(s),
		prefix: digest[32:],
	}, nil
}

// Public returns the compressed public point the signer signs under.
func (s *Signer) Public() []byte {
	return s.public.Bytes()
}

func (s *Signer) GetType() crypto.KeyType {
	return crypto.KeyTypeEd25519
}

// Sign produces a standard 64-byte Ed25519 signature R || s over the
// message. The nonce is derived deterministically from the signer's prefix
// and the message; the challenge is SHA-512(R || A || message) mod L, so
// signatures verify under the standard Ed25519 verification equation.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	nonce := hashToScalar(s.prefix, message)
	bigR := publicPoint(nonce)

	challenge := hashToScalar(bigR.Bytes(), s.public.Bytes(), message)
	sig := edwards25519.NewScalar().MultiplyAdd(challenge, s.scalar, nonce)

	signature := make([]byte, 0, SignatureSize)
	signature = append(signature, bigR.Bytes()...)
	signature = append(signature, sig.Bytes()...)
	return signature, nil
}

// Verify checks a signature under the standard Ed25519 verification
// equation.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != KeySize || len(signature) != SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
