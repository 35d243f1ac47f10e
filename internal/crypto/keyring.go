package crypto

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const (
	ServiceName = "timeledger"
	KeyName     = "db-encryption-key"

	// EnvKey overrides the system keyring, for headless hosts
	EnvKey = "TIMELEDGER_DB_KEY"
)

// ErrKeyNotFound is returned when no database key has been stored yet
var ErrKeyNotFound = errors.New("encryption key not found")

// Keyring provides secure key storage abstraction
type Keyring interface {
	GetKey() (string, error)
	SetKey(password string) error
	DeleteKey() error
	IsAvailable() bool
}

// NewKeyring returns a keyring that prefers TIMELEDGER_DB_KEY and falls
// back to the OS secret store (Keychain, Secret Service, Credential Manager).
func NewKeyring() Keyring {
	return &systemKeyring{getenv: os.Getenv}
}

type systemKeyring struct {
	getenv func(string) string
}

// GetKey retrieves the encryption key
func (k *systemKeyring) GetKey() (string, error) {
	if key := k.getenv(EnvKey); key != "" {
		return key, nil
	}

	key, err := keyring.Get(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to retrieve key from keyring: %w", err)
	}
	if key == "" {
		return "", ErrKeyNotFound
	}
	return key, nil
}

// SetKey stores the encryption key in the OS secret store
func (k *systemKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if err := keyring.Set(ServiceName, KeyName, password); err != nil {
		return fmt.Errorf("failed to store key in keyring (set %s instead): %w", EnvKey, err)
	}
	return nil
}

// DeleteKey removes the stored encryption key
func (k *systemKeyring) DeleteKey() error {
	if err := keyring.Delete(ServiceName, KeyName); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}
	return nil
}

// IsAvailable reports whether a key can be stored or read
func (k *systemKeyring) IsAvailable() bool {
	if k.getenv(EnvKey) != "" {
		return true
	}

	// Probe with a throwaway entry
	probe := "__timeledger_availability_test__"
	if err := keyring.Set(ServiceName, probe, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(ServiceName, probe)
	return true
}
