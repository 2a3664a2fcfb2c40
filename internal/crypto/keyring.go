package crypto

import (
	"errors"
)

// Keyring provides secure key storage abstraction
type Keyring interface {
	GetKey() (string, error)
	SetKey(password string) error
	DeleteKey() error
	IsAvailable() bool
}

const (
	ServiceName = "tally"
	KeyName     = "db-encryption-key"

	// EnvKey holds the database key when no OS keyring is reachable (CI, containers)
	EnvKey = "TALLY_DB_KEY"
)

// ErrKeyNotFound is returned when no key has been stored yet
var ErrKeyNotFound = errors.New("encryption key not found")

// NewKeyring returns a keyring that prefers TALLY_DB_KEY and falls back to the OS keyring
func NewKeyring() Keyring {
	return &chainKeyring{
		env:    &envKeyring{},
		system: &systemKeyring{},
	}
}

type chainKeyring struct {
	env    Keyring
	system Keyring
}

func (k *chainKeyring) GetKey() (string, error) {
	if k.env.IsAvailable() {
		return k.env.GetKey()
	}
	return k.system.GetKey()
}

func (k *chainKeyring) SetKey(password string) error {
	if k.system.IsAvailable() {
		return k.system.SetKey(password)
	}
	return k.env.SetKey(password)
}

func (k *chainKeyring) DeleteKey() error {
	if k.env.IsAvailable() {
		return k.env.DeleteKey()
	}
	return k.system.DeleteKey()
}

func (k *chainKeyring) IsAvailable() bool {
	return k.env.IsAvailable() || k.system.IsAvailable()
}
