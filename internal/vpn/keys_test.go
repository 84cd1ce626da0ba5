package vpn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePresharedKey(t *testing.T) {
	key, err := GeneratePresharedKey()
	require.NoError(t, err)
	assert.Len(t, key, 44)
	assert.True(t, ValidKey(key))

	// Два секрета не совпадают: deactivate-секрет должен быть независим от настоящего.
	other, err := GeneratePresharedKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestKeypair(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	assert.True(t, ValidKey(priv))

	pub, err := PublicKeyOf(priv)
	require.NoError(t, err)
	assert.True(t, ValidKey(pub))
	assert.NotEqual(t, priv, pub)

	// Детерминированность: тот же приватный ключ — тот же публичный.
	pub2, err := PublicKeyOf(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, pub2)
}

func TestValidKey(t *testing.T) {
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey("not-base64!!"))
	assert.False(t, ValidKey("c2hvcnQ=")) // слишком короткий
}

func TestPublicKeyOfRejectsGarbage(t *testing.T) {
	_, err := PublicKeyOf("garbage")
	assert.Error(t, err)
}
