package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func newTestKeyring(env map[string]string) *systemKeyring {
	keyring.MockInit()
	return &systemKeyring{getenv: func(k string) string { return env[k] }}
}

func TestKeyring_StoreAndDelete(t *testing.T) {
	k := newTestKeyring(nil)

	_, err := k.GetKey()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, k.SetKey("hunter2"))
	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", key)

	require.NoError(t, k.DeleteKey())
	assert.ErrorIs(t, k.DeleteKey(), ErrKeyNotFound)
	assert.True(t, k.IsAvailable())
}

func TestKeyring_EnvironmentWins(t *testing.T) {
	k := newTestKeyring(map[string]string{EnvKey: "from-env"})
	require.NoError(t, k.SetKey("stored"))

	key, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestKeyring_RejectsEmptyPassword(t *testing.T) {
	k := newTestKeyring(nil)
	assert.Error(t, k.SetKey(""))
}
