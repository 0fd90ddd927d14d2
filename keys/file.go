package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/louissarvin/kage-sub000/config"
	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/keys"
)

// FileKeyManager persists keys to a yaml store file, with private key
// material encrypted under an AES-GCM key from the config. Writes replace
// the store file atomically.
type FileKeyManager struct {
	keyConfig *config.Config
	logger    *zap.Logger
	key       keys.ByteString
	store     map[string]keys.Key
	storeMx   sync.Mutex
}

var _ keys.KeyManager = (*FileKeyManager)(nil)

func NewFileKeyManager(
	keyConfig *config.Config,
	logger *zap.Logger,
) *FileKeyManager {
	if keyConfig.Key == nil || keyConfig.Key.KeyStoreFile == nil {
		logger.Panic("key store config missing")
	}

	key, err := hex.DecodeString(keyConfig.Key.KeyStoreFile.EncryptionKey)
	if err != nil {
		logger.Panic("could not decode encryption key", zap.Error(err))
	}

	store := make(map[string]keys.Key)

	flag := os.O_RDONLY
	if keyConfig.Key.KeyStoreFile.CreateIfMissing {
		flag |= os.O_CREATE
	}

	file, err := os.OpenFile(
		keyConfig.Key.KeyStoreFile.Path,
		flag,
		os.FileMode(0600),
	)
	if err != nil {
		logger.Panic("could not open store", zap.Error(err))
	}

	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(store); err != nil && err != io.EOF {
		logger.Panic("could not decode store", zap.Error(err))
	}

	return &FileKeyManager{
		keyConfig: keyConfig,
		logger:    logger,
		key:       key,
		store:     store,
	}
}

func (f *FileKeyManager) GetRawKey(id string) (*keys.Key, error) {
	f.storeMx.Lock()
	defer f.storeMx.Unlock()

	record, ok := f.store[id]
	if !ok {
		return nil, errors.Wrap(KeyNotFoundErr, "get raw key")
	}

	private, err := f.decrypt(record.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "get raw key")
	}

	return &keys.Key{
		Id:         record.Id,
		Type:       record.Type,
		PrivateKey: private,
		PublicKey:  record.PublicKey,
	}, nil
}

func (f *FileKeyManager) PutRawKey(key *keys.Key) error {
	encrypted, err := f.encrypt(key.PrivateKey)
	if err != nil {
		return errors.Wrap(err, "put raw key")
	}

	return errors.Wrap(f.save(key.Id, keys.Key{
		Id:         key.Id,
		Type:       key.Type,
		PrivateKey: encrypted,
		PublicKey:  key.PublicKey,
	}), "put raw key")
}

func (f *FileKeyManager) DeleteKey(id string) error {
	f.storeMx.Lock()
	defer f.storeMx.Unlock()

	if _, ok := f.store[id]; !ok {
		return errors.Wrap(KeyNotFoundErr, "delete key")
	}

	updated := make(map[string]keys.Key, len(f.store))
	for k, v := range f.store {
		if k != id {
			updated[k] = v
		}
	}

	return errors.Wrap(f.writeStore(updated), "delete key")
}

func (f *FileKeyManager) ListKeys() ([]*keys.Key, error) {
	f.storeMx.Lock()
	defer f.storeMx.Unlock()

	out := make([]*keys.Key, 0, len(f.store))
	for _, record := range f.store {
		record := record
		out = append(out, &keys.Key{
			Id:        record.Id,
			Type:      record.Type,
			PublicKey: record.PublicKey,
		})
	}

	return out, nil
}

func (f *FileKeyManager) CreateMetaKeyPair(id string) (
	*stealth.MetaKeyPair,
	error,
) {
	pair, err := stealth.GenerateMetaKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "create meta key pair")
	}

	if err := f.PutRawKey(metaKeyRecord(id, pair)); err != nil {
		return nil, errors.Wrap(err, "create meta key pair")
	}

	return pair, nil
}

func (f *FileKeyManager) GetMetaKeyPair(id string) (
	*stealth.MetaKeyPair,
	error,
) {
	key, err := f.GetRawKey(id)
	if err != nil {
		return nil, errors.Wrap(err, "get meta key pair")
	}

	pair, err := metaKeyPairFromRecord(key)
	if err != nil {
		return nil, errors.Wrap(err, "get meta key pair")
	}

	return pair, nil
}

func (f *FileKeyManager) save(id string, record keys.Key) error {
	f.storeMx.Lock()
	defer f.storeMx.Unlock()

	updated := make(map[string]keys.Key, len(f.store)+1)
	for k, v := range f.store {
		updated[k] = v
	}
	updated[id] = record

	return f.writeStore(updated)
}

// writeStore writes via a temp file in the store's directory and renames it
// over the original, so a crash never leaves a partially written store.
// Callers hold storeMx.
func (f *FileKeyManager) writeStore(updated map[string]keys.Key) error {
	originalPath := f.keyConfig.Key.KeyStoreFile.Path
	dir := filepath.Dir(originalPath)

	tempFile, err := os.CreateTemp(dir, "keystore-*.tmp")
	if err != nil {
		return errors.Wrap(err, "could not create temporary file")
	}
	tempPath := tempFile.Name()

	defer func() {
		tempFile.Close()
		if _, err := os.Stat(tempPath); err == nil {
			os.Remove(tempPath)
		}
	}()

	if err := os.Chmod(tempPath, 0600); err != nil {
		return errors.Wrap(err, "could not set file permissions")
	}

	encoder := yaml.NewEncoder(tempFile)
	if err := encoder.Encode(updated); err != nil {
		return errors.Wrap(err, "could not encode to temporary file")
	}

	if err := tempFile.Sync(); err != nil {
		return errors.Wrap(err, "could not sync temporary file")
	}

	if err := tempFile.Close(); err != nil {
		return errors.Wrap(err, "could not close temporary file")
	}

	if err := os.Rename(tempPath, originalPath); err != nil {
		return errors.Wrap(err, "could not replace key store file")
	}

	f.store = updated
	return nil
}

func (f *FileKeyManager) encrypt(data []byte) ([]byte, error) {
	iv := [12]byte{}
	rand.Read(iv[:])
	aesCipher, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct cipher")
	}

	gcm, err := cipher.NewGCM(aesCipher)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct block")
	}

	ciphertext := gcm.Seal(nil, iv[:], data, nil)
	ciphertext = append(append([]byte{}, iv[:]...), ciphertext...)

	return ciphertext, nil
}

func (f *FileKeyManager) decrypt(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errors.Wrap(
			errors.New("ciphertext too short"),
			"could not decrypt ciphertext",
		)
	}

	iv := data[:12]
	aesCipher, err := aes.NewCipher(f.key)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct cipher")
	}

	gcm, err := cipher.NewGCM(aesCipher)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct block")
	}

	plaintext, err := gcm.Open(nil, iv, data[12:], nil)
	return plaintext, errors.Wrap(err, "could not decrypt ciphertext")
}
