package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyring_SystemStore(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvKey, "")
	k := NewKeyring()

	_, err := k.GetKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, k.SetKey("s3cret"))
	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", key)

	require.NoError(t, k.DeleteKey())
	_, err = k.GetKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyring_EnvTakesPrecedence(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvKey, "from-env")
	k := NewKeyring()

	require.NoError(t, keyring.Set(ServiceName, KeyName, "from-keyring"))
	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
	assert.True(t, k.IsAvailable())
}

func TestKeyring_RejectsEmptyPassword(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvKey, "")

	assert.Error(t, NewKeyring().SetKey(""))
}
