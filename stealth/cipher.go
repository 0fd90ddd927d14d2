package stealth

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// NonceSize is the length of the random prefix carried on every
	// encrypted payload. The nonce is format filler kept for wire
	// compatibility: it is not mixed into the keystream, which is safe
	// because every payload is keyed by a fresh ephemeral secret.
	NonceSize = 24

	// MaxNoteSize is the largest note the 2-byte length field can carry.
	MaxNoteSize = 0xffff

	payloadHeaderSize = KeySize + KeySize + 2
)

var ErrPayloadIntegrity = errors.New(
	"decrypted ephemeral key does not reproduce the carried public key",
)

// DeriveSharedSecret computes the ECDH shared secret between a local private
// scalar and a remote public point. It is commutative:
// DeriveSharedSecret(a, B) == DeriveSharedSecret(b, A) when A = aG, B = bG.
func DeriveSharedSecret(localPrivateKey, remotePublicKey []byte) ([]byte, error) {
	s, err := scalarFromBytes(localPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive shared secret")
	}

	p, err := pointFromBytes(remotePublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "derive shared secret")
	}

	return pointToSharedSecret(s, p), nil
}

// keystream expands a shared secret into 96 bytes of XOR key material by
// iterated hashing.
func keystream(sharedSecret []byte) []byte {
	key1 := sha256.Sum256(sharedSecret)
	key2 := sha256.Sum256(append(key1[:], 1))
	key3 := sha256.Sum256(append(key1[:], 2))

	stream := make([]byte, 0, 3*sha256.Size)
	stream = append(stream, key1[:]...)
	stream = append(stream, key2[:]...)
	stream = append(stream, key3[:]...)
	return stream
}

func xorKeystream(dst, src, stream []byte) {
	for i := range src {
		dst[i] = src[i] ^ stream[i%len(stream)]
	}
}

// EncryptPayload seals the ephemeral private key and an optional note for
// the holder of the view private key matching recipientViewPublicKey. The
// output is nonce(24) || ciphertext, with ciphertext the same length as the
// plaintext ephPriv(32) || ephPub(32) || noteLen(2,LE) || note.
func EncryptPayload(
	ephemeralPrivateKey []byte,
	note []byte,
	recipientViewPublicKey []byte,
) ([]byte, error) {
	if len(note) > MaxNoteSize {
		return nil, errors.Wrap(
			errors.New("note exceeds maximum length"),
			"encrypt payload",
		)
	}

	ephemeralPublicKey, err := PublicKeyFor(ephemeralPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt payload")
	}

	sharedSecret, err := DeriveSharedSecret(
		ephemeralPrivateKey,
		recipientViewPublicKey,
	)
	if err != nil {
		return nil, errors.Wrap(err, "encrypt payload")
	}

	plaintext := make([]byte, payloadHeaderSize+len(note))
	copy(plaintext[:KeySize], ephemeralPrivateKey)
	copy(plaintext[KeySize:2*KeySize], ephemeralPublicKey)
	binary.LittleEndian.PutUint16(plaintext[2*KeySize:], uint16(len(note)))
	copy(plaintext[payloadHeaderSize:], note)

	payload := make([]byte, NonceSize+len(plaintext))
	if _, err := rand.Read(payload[:NonceSize]); err != nil {
		return nil, errors.Wrap(err, "encrypt payload")
	}

	xorKeystream(payload[NonceSize:], plaintext, keystream(sharedSecret))
	return payload, nil
}

// DecryptPayload recovers the ephemeral private key and note from a payload
// produced by EncryptPayload. The recovered private key must reproduce the
// carried ephemeral public key, which in turn must match the public key the
// payment was observed under; any mismatch fails with ErrPayloadIntegrity.
// This structural redundancy is the only integrity check: the format has no
// authenticated-encryption tag.
func DecryptPayload(
	payload []byte,
	recipientViewPrivateKey []byte,
	ephemeralPublicKey []byte,
) (ephemeralPrivateKey []byte, note []byte, err error) {
	if len(payload) < NonceSize+payloadHeaderSize {
		return nil, nil, errors.Wrap(ErrPayloadIntegrity, "decrypt payload")
	}

	sharedSecret, err := DeriveSharedSecret(
		recipientViewPrivateKey,
		ephemeralPublicKey,
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decrypt payload")
	}

	ciphertext := payload[NonceSize:]
	plaintext := make([]byte, len(ciphertext))
	xorKeystream(plaintext, ciphertext, keystream(sharedSecret))

	ephemeralPrivateKey = plaintext[:KeySize]
	carriedPublicKey := plaintext[KeySize : 2*KeySize]
	noteLength := int(binary.LittleEndian.Uint16(plaintext[2*KeySize:]))

	if len(plaintext) != payloadHeaderSize+noteLength {
		return nil, nil, errors.Wrap(ErrPayloadIntegrity, "decrypt payload")
	}

	recomputedPublicKey, err := PublicKeyFor(ephemeralPrivateKey)
	if err != nil {
		return nil, nil, errors.Wrap(ErrPayloadIntegrity, "decrypt payload")
	}

	if !bytes.Equal(recomputedPublicKey, carriedPublicKey) ||
		!bytes.Equal(recomputedPublicKey, ephemeralPublicKey) {
		return nil, nil, errors.Wrap(ErrPayloadIntegrity, "decrypt payload")
	}

	return ephemeralPrivateKey, plaintext[payloadHeaderSize:], nil
}
