package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	cred := &Credential{
		Network:     "onedrive",
		Account:     "42",
		AccessToken: "eyJ0eXAiOiJKV1QiLCJhbGciOiJSUzI1NiJ9",
	}

	if err := manager.Store(cred); err != nil {
		t.Fatalf("Failed to store credential: %v", err)
	}
	if cred.LastModified.IsZero() {
		t.Error("Store should stamp LastModified")
	}

	token, err := manager.AccessToken("OneDrive", "42")
	if err != nil {
		t.Fatalf("Failed to retrieve token: %v", err)
	}
	if token != cred.AccessToken {
		t.Errorf("Token mismatch: got %s, want %s", token, cred.AccessToken)
	}

	creds, err := manager.List()
	if err != nil {
		t.Fatalf("Failed to list credentials: %v", err)
	}
	if len(creds) != 1 || creds[0].Key() != "onedrive/42" {
		t.Errorf("Unexpected credential list: %+v", creds)
	}

	sanitized := Sanitize(cred)
	if sanitized.AccessToken == cred.AccessToken {
		t.Error("AccessToken should be masked")
	}
	if sanitized.Account != cred.Account {
		t.Error("Account should not be masked")
	}

	if err := manager.Delete("onedrive", "42"); err != nil {
		t.Errorf("Failed to delete credential: %v", err)
	}
	if _, err := manager.Retrieve("onedrive", "42"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after delete, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 credentials after deletion, got %d", mockStore.Count())
	}
	if err := manager.Delete("onedrive", "42"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound deleting twice, got %v", err)
	}
}

func TestManagerValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name string
		cred *Credential
	}{
		{"nil", nil},
		{"no network", &Credential{Account: "1", AccessToken: "t"}},
		{"no account", &Credential{Network: "dropbox", AccessToken: "t"}},
		{"no token", &Credential{Network: "dropbox", Account: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := manager.Store(tt.cred); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	cred := &Credential{Network: "dropbox", Account: "7", AccessToken: "sl.token"}
	if err := manager.Store(cred); err != nil {
		t.Fatalf("Store should fall back: %v", err)
	}
	if !working.Exists("dropbox/7") {
		t.Error("Credential should land in the second store")
	}

	broken.StoreError = nil
	older := *cred
	older.AccessToken = "stale"
	older.LastModified = cred.LastModified.Add(-time.Hour)
	if err := broken.Store(&older); err != nil {
		t.Fatal(err)
	}
	creds, _ := manager.List()
	if len(creds) != 1 || creds[0].AccessToken != "sl.token" {
		t.Errorf("List should keep the newest credential, got %+v", creds)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	cred := &Credential{Network: "facebook", Account: "1", AccessToken: "plain_facebook_token"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Credential{Network: "facebook", Account: "2", AccessToken: "second_token"}); err != nil {
		t.Fatal(err)
	}

	retrieved, err := store.Retrieve("facebook/1")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.AccessToken != cred.AccessToken {
		t.Error("AccessToken mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("plain_facebook_token")) {
		t.Error("File contains plaintext token")
	}

	reopened, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	creds, err := reopened.List()
	if err != nil {
		t.Fatalf("Failed to list after reopen: %v", err)
	}
	if len(creds) != 2 || creds[0].Account != "1" || creds[1].Account != "2" {
		t.Errorf("Unexpected list after reopen: %+v", creds)
	}

	if err := store.Delete("facebook/1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("facebook/2"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Store file should be removed once empty")
	}
	if err := store.Delete("facebook/2"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Credential{Network: "vk", Account: "1", AccessToken: "token"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Retrieve("vk/1"); err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected a decryption error, got %v", err)
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	if _, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc")); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Passphrase file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Passphrase file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("SOCIALCACHE_ACCESS_TOKEN", "generic")
	t.Setenv("SOCIALCACHE_ONEDRIVE_ACCESS_TOKEN", "onedrive_token")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve("onedrive/42")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if cred.AccessToken != "onedrive_token" || cred.Account != "42" {
		t.Errorf("Unexpected credential: %+v", cred)
	}

	cred, err = store.Retrieve("dropbox/")
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "generic" || cred.Account != "default" {
		t.Errorf("Unexpected fallback credential: %+v", cred)
	}

	if err := store.Store(&Credential{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
	if err := store.Delete("onedrive/42"); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment delete")
	}
}

func TestEnvironmentStoreEmpty(t *testing.T) {
	t.Setenv("SOCIALCACHE_ACCESS_TOKEN", "")
	t.Setenv("SOCIALCACHE_FACEBOOK_ACCESS_TOKEN", "")

	store := NewEnvironmentStore()
	if store.Exists("facebook/1") {
		t.Error("No token should exist")
	}
	if _, err := store.Retrieve("facebook/1"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Failed to create keyring store: %v", err)
	}

	cred := &Credential{Network: "twitter", Account: "9", AccessToken: "keyring_token"}
	if err := store.Store(cred); err != nil {
		t.Fatalf("Failed to store in keyring: %v", err)
	}
	if !store.Exists("twitter/9") {
		t.Error("Credential should exist")
	}

	retrieved, err := store.Retrieve("twitter/9")
	if err != nil {
		t.Fatal(err)
	}
	if retrieved.AccessToken != "keyring_token" {
		t.Errorf("AccessToken mismatch: got %s", retrieved.AccessToken)
	}

	if err := store.Delete("twitter/9"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Retrieve("twitter/9"); err != ErrCredentialsNotFound {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestMockStore(t *testing.T) {
	store := NewMockStore()

	creds, err := store.List()
	if err != nil || len(creds) != 0 {
		t.Errorf("Expected empty store, got %d (%v)", len(creds), err)
	}

	if err := store.Store(&Credential{Network: "google", Account: "3", AccessToken: "t"}); err != nil {
		t.Fatal(err)
	}
	if store.Count() != 1 {
		t.Errorf("Expected 1 credential, got %d", store.Count())
	}

	store.ListError = errors.New("injected error")
	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}
