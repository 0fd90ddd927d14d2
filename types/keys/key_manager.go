package keys

import (
	"encoding/hex"

	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/crypto"
)

// KeyManager holds recipient key material: long-lived stealth meta keypairs
// and derived one-time scalars a caller chooses to retain.
type KeyManager interface {
	GetRawKey(id string) (*Key, error)
	PutRawKey(key *Key) error
	DeleteKey(id string) error
	ListKeys() ([]*Key, error)
	CreateMetaKeyPair(id string) (*stealth.MetaKeyPair, error)
	GetMetaKeyPair(id string) (*stealth.MetaKeyPair, error)
}

type ByteString []byte

func (b ByteString) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *ByteString) UnmarshalText(text []byte) error {
	value, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}

	*b = value
	return nil
}

// Key is one stored key record. For meta keypairs the private and public
// fields each hold the spend half followed by the view half (64 bytes).
type Key struct {
	Id         string         `yaml:"id"`
	Type       crypto.KeyType `yaml:"type"`
	PrivateKey ByteString     `yaml:"privateKey"`
	PublicKey  ByteString     `yaml:"publicKey"`
}
