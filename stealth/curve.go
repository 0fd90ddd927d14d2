package stealth

import (
	"crypto/rand"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"github.com/pkg/errors"
)

const (
	// KeySize is the size of every scalar and compressed point in bytes.
	KeySize = 32
	// SignatureSize is the size of a Schnorr signature (R || s).
	SignatureSize = 64
)

var ErrKeyFormat = errors.New("malformed 32-byte key")

func scalarFromBytes(b []byte) (*edwards25519.Scalar, error) {
	if len(b) != KeySize {
		return nil, errors.Wrap(ErrKeyFormat, "scalar from bytes")
	}

	s, err := edwards25519.NewScalar().SetCanonicalBytes(b)
	if err != nil {
		return nil, errors.Wrap(ErrKeyFormat, "scalar from bytes")
	}

	return s, nil
}

func pointFromBytes(b []byte) (*edwards25519.Point, error) {
	if len(b) != KeySize {
		return nil, errors.Wrap(ErrKeyFormat, "point from bytes")
	}

	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, errors.Wrap(ErrKeyFormat, "point from bytes")
	}

	return p, nil
}

// randomScalar draws a fresh scalar by wide reduction of 64 random bytes, so
// the result is uniform mod the group order and its byte encoding is
// canonical.
func randomScalar() (*edwards25519.Scalar, error) {
	wide := make([]byte, 64)
	if _, err := rand.Read(wide); err != nil {
		return nil, errors.Wrap(err, "random scalar")
	}

	s, err := edwards25519.NewScalar().SetUniformBytes(wide)
	if err != nil {
		return nil, errors.Wrap(err, "random scalar")
	}

	return s, nil
}

// hashToScalar reduces SHA-512 over the concatenated inputs mod the group
// order.
func hashToScalar(inputs ...[]byte) *edwards25519.Scalar {
	h := sha512.New()
	for _, input := range inputs {
		h.Write(input)
	}

	s, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		// SetUniformBytes only fails on wrong input length; a SHA-512
		// digest is always 64 bytes.
		panic(err)
	}

	return s
}

func publicPoint(scalar *edwards25519.Scalar) *edwards25519.Point {
	return new(edwards25519.Point).ScalarBaseMult(scalar)
}

func pointToSharedSecret(
	scalar *edwards25519.Scalar,
	point *edwards25519.Point,
) []byte {
	return new(edwards25519.Point).ScalarMult(scalar, point).Bytes()
}
