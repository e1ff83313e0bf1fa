package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads tokens from SOCIALCACHE_<NETWORK>_ACCESS_TOKEN,
// falling back to SOCIALCACHE_ACCESS_TOKEN. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve builds a credential for key from the environment
func (e *EnvironmentStore) Retrieve(key string) (*Credential, error) {
	network, account := splitKey(key)
	token := lookupToken(network)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if account == "" {
		account = "default"
	}

	return &Credential{
		Network:      network,
		Account:      account,
		AccessToken:  token,
		LastModified: time.Now(),
	}, nil
}

// List returns nothing: the environment does not name accounts
func (e *EnvironmentStore) List() ([]*Credential, error) {
	return []*Credential{}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if a token is set for the key's network
func (e *EnvironmentStore) Exists(key string) bool {
	network, _ := splitKey(key)
	return lookupToken(network) != ""
}

func lookupToken(network string) string {
	if network != "" {
		if token := os.Getenv("SOCIALCACHE_" + strings.ToUpper(network) + "_ACCESS_TOKEN"); token != "" {
			return token
		}
	}
	return os.Getenv("SOCIALCACHE_ACCESS_TOKEN")
}
