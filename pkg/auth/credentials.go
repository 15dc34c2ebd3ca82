package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const appDirName = "pixscrape"

// Credential is a Pixabay API key stored under a profile name
type Credential struct {
	Profile      string    `json:"profile"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves the credential under its profile
	Store(cred *Credential) error

	// Retrieve gets the credential for a profile
	Retrieve(profile string) (*Credential, error)

	// Delete removes the credential for a profile
	Delete(profile string) error

	// Exists checks if a credential exists for a profile
	Exists(profile string) bool

	// Name identifies the backend in messages
	Name() string
}

// Manager handles credential storage with fallback across backends
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager that tries stores in the given order
func NewManager(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// NewDefaultManager uses the system keyring when it is usable and always
// falls back to an encrypted file in the user config directory.
func NewDefaultManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	passphrase, err := LoadPassphrase(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	return NewManager(stores...), nil
}

// Store saves the credential in the first store that accepts it and returns
// that store's name
func (m *Manager) Store(cred *Credential) (string, error) {
	if cred == nil || cred.Profile == "" {
		return "", errors.New("profile is required")
	}
	if cred.APIKey == "" {
		return "", errors.New("API key is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return store.Name(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w for profile %q", ErrCredentialsNotFound, profile)
}

// Delete removes the credential from every store holding it
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		err := store.Delete(profile)
		switch {
		case err == nil:
			deleted = true
		case !errors.Is(err, ErrCredentialsNotFound):
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for profile %q", ErrCredentialsNotFound, profile)
	}
	return nil
}

// StoreNames lists the active backends in lookup order
func (m *Manager) StoreNames() []string {
	names := make([]string, len(m.stores))
	for i, s := range m.stores {
		names[i] = s.Name()
	}
	return names
}

// ConfigDir returns the per-user configuration directory, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appDirName)
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), appDirName)
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, appDirName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", appDirName)
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// MaskKey hides all but the first and last four characters of a key
func MaskKey(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
