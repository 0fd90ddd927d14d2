package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/louissarvin/kage-sub000/config"
	"github.com/louissarvin/kage-sub000/types/crypto"
	"github.com/louissarvin/kage-sub000/types/keys"
)

func fileManagerConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Key: &config.KeyConfig{
			KeyStoreFile: &config.KeyStoreFileConfig{
				Path: filepath.Join(t.TempDir(), "keys.yml"),
				EncryptionKey: hex.EncodeToString(
					[]byte("0123456789abcdef0123456789abcdef"),
				),
				CreateIfMissing: true,
			},
		},
	}
}

func TestFileKeyManager_PersistsAcrossReopen(t *testing.T) {
	cfg := fileManagerConfig(t)

	manager := NewFileKeyManager(cfg, zap.NewNop())
	created, err := manager.CreateMetaKeyPair("me")
	require.NoError(t, err)

	reopened := NewFileKeyManager(cfg, zap.NewNop())
	loaded, err := reopened.GetMetaKeyPair("me")
	require.NoError(t, err)
	assert.Equal(t, created, loaded)
}

func TestFileKeyManager_PrivateKeyEncryptedAtRest(t *testing.T) {
	cfg := fileManagerConfig(t)

	manager := NewFileKeyManager(cfg, zap.NewNop())
	key := &keys.Key{
		Id:         "signer-1",
		Type:       crypto.KeyTypeEd25519,
		PrivateKey: []byte("super secret scalar material 32b"),
		PublicKey:  []byte{0x01},
	}
	require.NoError(t, manager.PutRawKey(key))

	raw, err := os.ReadFile(cfg.Key.KeyStoreFile.Path)
	require.NoError(t, err)
	assert.NotContains(
		t,
		string(raw),
		hex.EncodeToString(key.PrivateKey),
	)

	got, err := manager.GetRawKey("signer-1")
	require.NoError(t, err)
	assert.Equal(t, key.PrivateKey, got.PrivateKey)
}

func TestFileKeyManager_ListOmitsPrivateMaterial(t *testing.T) {
	cfg := fileManagerConfig(t)

	manager := NewFileKeyManager(cfg, zap.NewNop())
	_, err := manager.CreateMetaKeyPair("me")
	require.NoError(t, err)

	list, err := manager.ListKeys()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PrivateKey)
}

func TestFileKeyManager_DeletePersists(t *testing.T) {
	cfg := fileManagerConfig(t)

	manager := NewFileKeyManager(cfg, zap.NewNop())
	_, err := manager.CreateMetaKeyPair("me")
	require.NoError(t, err)
	require.NoError(t, manager.DeleteKey("me"))

	reopened := NewFileKeyManager(cfg, zap.NewNop())
	_, err = reopened.GetMetaKeyPair("me")
	assert.ErrorIs(t, err, KeyNotFoundErr)
}

func TestFileKeyManager_StoreFileMode(t *testing.T) {
	cfg := fileManagerConfig(t)

	manager := NewFileKeyManager(cfg, zap.NewNop())
	_, err := manager.CreateMetaKeyPair("me")
	require.NoError(t, err)

	info, err := os.Stat(cfg.Key.KeyStoreFile.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
