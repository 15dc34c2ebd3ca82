package auth

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// memoryStore is an in-process CredentialStore for manager tests
type memoryStore struct {
	mu       sync.Mutex
	name     string
	creds    map[string]Credential
	failSave bool
}

func newMemoryStore(name string) *memoryStore {
	return &memoryStore{name: name, creds: make(map[string]Credential)}
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Store(cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return ErrStoreUnavailable
	}
	m.creds[cred.Profile] = *cred
	return nil
}

func (m *memoryStore) Retrieve(profile string) (*Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[profile]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &c, nil
}

func (m *memoryStore) Delete(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[profile]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, profile)
	return nil
}

func (m *memoryStore) Exists(profile string) bool {
	_, err := m.Retrieve(profile)
	return err == nil
}

func TestManager_StoreRetrieveDelete(t *testing.T) {
	primary := newMemoryStore("primary")
	manager := NewManager(primary)

	name, err := manager.Store(&Credential{Profile: "default", APIKey: "12345-abcdef"})
	require.NoError(t, err)
	assert.Equal(t, "primary", name)

	cred, err := manager.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "12345-abcdef", cred.APIKey)
	assert.False(t, cred.LastModified.IsZero())

	require.NoError(t, manager.Delete("default"))
	_, err = manager.Retrieve("default")
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))

	err = manager.Delete("default")
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))
}

func TestManager_FallsBackWhenStoreFails(t *testing.T) {
	broken := newMemoryStore("broken")
	broken.failSave = true
	fallback := newMemoryStore("fallback")
	manager := NewManager(broken, fallback)

	name, err := manager.Store(&Credential{Profile: "work", APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)
	assert.True(t, fallback.Exists("work"))
	assert.Equal(t, []string{"broken", "fallback"}, manager.StoreNames())

	cred, err := manager.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, "key", cred.APIKey)
}

func TestManager_StoreValidation(t *testing.T) {
	manager := NewManager(newMemoryStore("m"))

	_, err := manager.Store(&Credential{APIKey: "key"})
	assert.Error(t, err)
	_, err = manager.Store(&Credential{Profile: "p"})
	assert.Error(t, err)

	_, err = NewManager().Store(&Credential{Profile: "p", APIKey: "k"})
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	assert.False(t, store.Exists("default"))
	require.NoError(t, store.Store(&Credential{Profile: "default", APIKey: "ring-key"}))
	assert.True(t, store.Exists("default"))

	cred, err := store.Retrieve("default")
	require.NoError(t, err)
	assert.Equal(t, "ring-key", cred.APIKey)

	require.NoError(t, store.Delete("default"))
	_, err = store.Retrieve("default")
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))
	assert.True(t, errors.Is(store.Delete("default"), ErrCredentialsNotFound))

	assert.True(t, errors.Is(store.Store(&Credential{}), ErrInvalidCredentials))
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)

	require.NoError(t, store.Store(&Credential{Profile: "default", APIKey: "file-key-1"}))
	require.NoError(t, store.Store(&Credential{Profile: "work", APIKey: "file-key-2"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "file-key-1")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// a second handle with the same passphrase reads the same data
	reopened, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)
	cred, err := reopened.Retrieve("work")
	require.NoError(t, err)
	assert.Equal(t, "file-key-2", cred.APIKey)

	wrong, err := NewEncryptedFileStore(path, "wrong passphrase")
	require.NoError(t, err)
	_, err = wrong.Retrieve("work")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCredentialsNotFound))

	require.NoError(t, store.Delete("default"))
	require.NoError(t, store.Delete("work"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = store.Retrieve("work")
	assert.True(t, errors.Is(err, ErrCredentialsNotFound))
}

func TestNewEncryptedFileStore_RequiresPassphrase(t *testing.T) {
	_, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "c.enc"), "")
	assert.Error(t, err)
}

func TestLoadPassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(PassphraseEnv, "from-env")
	pass, err := LoadPassphrase(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", pass)

	t.Setenv(PassphraseEnv, "")
	first, err := LoadPassphrase(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := LoadPassphrase(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, appDirName), dir)
	assert.DirExists(t, dir)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "********", MaskKey("short"))
	assert.Equal(t, "1234...wxyz", MaskKey("1234567890-abcdefwxyz"))
}
