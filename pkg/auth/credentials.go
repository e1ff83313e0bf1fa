package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Credential is the bearer token used to download images for one account
// of one social network.
type Credential struct {
	Network      string    `json:"network"`
	Account      string    `json:"account"`
	AccessToken  string    `json:"access_token"`
	LastModified time.Time `json:"last_modified"`
}

// Key identifies the credential inside a store
func (c *Credential) Key() string {
	return Key(c.Network, c.Account)
}

// Key builds the store key for a network account
func Key(network, account string) string {
	return strings.ToLower(network) + "/" + account
}

// splitKey is the inverse of Key
func splitKey(key string) (network, account string) {
	network, account, _ = strings.Cut(key, "/")
	return network, account
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves a credential under its key
	Store(cred *Credential) error

	// Retrieve gets the credential stored under key
	Retrieve(key string) (*Credential, error)

	// List returns all stored credentials
	List() ([]*Credential, error)

	// Delete removes the credential stored under key
	Delete(key string) error

	// Exists checks if a credential is stored under key
	Exists(key string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager backed by the system keychain when
// available, an encrypted file, and finally the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the credential using the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if cred == nil || cred.Network == "" {
		return errors.New("network is required")
	}
	if cred.Account == "" {
		return errors.New("account is required")
	}
	if cred.AccessToken == "" {
		return errors.New("access token is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(network, account string) (*Credential, error) {
	key := Key(network, account)
	for _, store := range m.stores {
		if cred, err := store.Retrieve(key); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, key)
}

// AccessToken returns only the token for a network account
func (m *Manager) AccessToken(network, account string) (string, error) {
	cred, err := m.Retrieve(network, account)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// List returns the newest version of every credential across all stores,
// sorted by key
func (m *Manager) List() ([]*Credential, error) {
	byKey := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byKey[cred.Key()]; !ok || cred.LastModified.After(existing.LastModified) {
				byKey[cred.Key()] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byKey))
	for _, cred := range byKey {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key() < result[j].Key() })
	return result, nil
}

// Delete removes the credential from all stores
func (m *Manager) Delete(network, account string) error {
	key := Key(network, account)

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(key); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCredentialsNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, key)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "socialcache")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "socialcache")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "socialcache")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "socialcache")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the credential with the token masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	masked := *cred
	masked.AccessToken = maskString(cred.AccessToken)
	return &masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
