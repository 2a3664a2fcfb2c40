package crypto

import (
	"errors"
	"fmt"
	"os"
)

type envKeyring struct{}

// GetKey retrieves the encryption key from TALLY_DB_KEY
func (k *envKeyring) GetKey() (string, error) {
	key := os.Getenv(EnvKey)
	if key == "" {
		return "", ErrKeyNotFound
	}

	return key, nil
}

// SetKey cannot persist anything; it tells the user what to export
func (k *envKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	return fmt.Errorf("no keyring available: export %s to keep using this database", EnvKey)
}

// DeleteKey cannot unset the parent shell's environment
func (k *envKeyring) DeleteKey() error {
	return fmt.Errorf("no keyring available: unset %s manually", EnvKey)
}

// IsAvailable checks if TALLY_DB_KEY is set
func (k *envKeyring) IsAvailable() bool {
	return os.Getenv(EnvKey) != ""
}
