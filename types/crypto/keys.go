package crypto

type KeyType int

const (
	KeyTypeEd25519 KeyType = iota
	KeyTypeStealthMeta
)

// Signer produces signatures over caller-owned byte buffers. Implementations
// must be safe for concurrent use.
type Signer interface {
	Public() []byte
	Sign(message []byte) (signature []byte, err error)
	GetType() KeyType
}

// Agreement performs a Diffie-Hellman key agreement over raw 32-byte keys.
type Agreement interface {
	Private() []byte
	Public() []byte
	AgreeWith(publicKey []byte) (shared []byte, err error)
}
