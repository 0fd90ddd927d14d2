// Package keys provides recipient key custody: an in-memory manager for
// tests and short-lived tooling, and an encrypted file-backed manager for
// durable storage of stealth meta keypairs.
package keys

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/crypto"
	"github.com/louissarvin/kage-sub000/types/keys"
)

var (
	KeyNotFoundErr        = errors.New("key not found")
	UnsupportedKeyTypeErr = errors.New("unsupported key type")
)

type InMemoryKeyManager struct {
	storeMx sync.Mutex
	store   map[string]keys.Key
}

var _ keys.KeyManager = (*InMemoryKeyManager)(nil)

func NewInMemoryKeyManager() *InMemoryKeyManager {
	return &InMemoryKeyManager{
		store: make(map[string]keys.Key),
	}
}

func (m *InMemoryKeyManager) GetRawKey(id string) (*keys.Key, error) {
	m.storeMx.Lock()
	defer m.storeMx.Unlock()

	key, ok := m.store[id]
	if !ok {
		return nil, errors.Wrap(KeyNotFoundErr, "get raw key")
	}

	return &key, nil
}

func (m *InMemoryKeyManager) PutRawKey(key *keys.Key) error {
	m.storeMx.Lock()
	defer m.storeMx.Unlock()

	m.store[key.Id] = *key
	return nil
}

func (m *InMemoryKeyManager) DeleteKey(id string) error {
	m.storeMx.Lock()
	defer m.storeMx.Unlock()

	if _, ok := m.store[id]; !ok {
		return errors.Wrap(KeyNotFoundErr, "delete key")
	}

	delete(m.store, id)
	return nil
}

func (m *InMemoryKeyManager) ListKeys() ([]*keys.Key, error) {
	m.storeMx.Lock()
	defer m.storeMx.Unlock()

	out := make([]*keys.Key, 0, len(m.store))
	for _, key := range m.store {
		key := key
		out = append(out, &key)
	}

	return out, nil
}

func (m *InMemoryKeyManager) CreateMetaKeyPair(id string) (
	*stealth.MetaKeyPair,
	error,
) {
	pair, err := stealth.GenerateMetaKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "create meta key pair")
	}

	if err := m.PutRawKey(metaKeyRecord(id, pair)); err != nil {
		return nil, errors.Wrap(err, "create meta key pair")
	}

	return pair, nil
}

func (m *InMemoryKeyManager) GetMetaKeyPair(id string) (
	*stealth.MetaKeyPair,
	error,
) {
	key, err := m.GetRawKey(id)
	if err != nil {
		return nil, errors.Wrap(err, "get meta key pair")
	}

	pair, err := metaKeyPairFromRecord(key)
	if err != nil {
		return nil, errors.Wrap(err, "get meta key pair")
	}

	return pair, nil
}

func metaKeyRecord(id string, pair *stealth.MetaKeyPair) *keys.Key {
	private := make([]byte, 0, 2*stealth.KeySize)
	private = append(private, pair.SpendPrivateKey...)
	private = append(private, pair.ViewPrivateKey...)

	public := make([]byte, 0, 2*stealth.KeySize)
	public = append(public, pair.MetaAddress.SpendPublicKey...)
	public = append(public, pair.MetaAddress.ViewPublicKey...)

	return &keys.Key{
		Id:         id,
		Type:       crypto.KeyTypeStealthMeta,
		PrivateKey: private,
		PublicKey:  public,
	}
}

func metaKeyPairFromRecord(key *keys.Key) (*stealth.MetaKeyPair, error) {
	if key.Type != crypto.KeyTypeStealthMeta {
		return nil, UnsupportedKeyTypeErr
	}
	if len(key.PrivateKey) != 2*stealth.KeySize ||
		len(key.PublicKey) != 2*stealth.KeySize {
		return nil, errors.New("malformed meta key record")
	}

	return &stealth.MetaKeyPair{
		SpendPrivateKey: key.PrivateKey[:stealth.KeySize],
		ViewPrivateKey:  key.PrivateKey[stealth.KeySize:],
		MetaAddress: stealth.MetaAddress{
			SpendPublicKey: key.PublicKey[:stealth.KeySize],
			ViewPublicKey:  key.PublicKey[stealth.KeySize:],
		},
	}, nil
}
