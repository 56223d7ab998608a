package keyderiv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	secret := []byte("correct-horse")
	salt := bytes.Repeat([]byte{0xAB}, SaltSize)

	key1, err := Derive(secret, salt)
	require.NoError(t, err)
	key2, err := Derive(secret, salt)
	require.NoError(t, err)

	assert.Equal(t, key1, key2, "same inputs must yield the same key")
	assert.Len(t, key1, KeySize)
}

func TestDerive_DifferentInputsDifferentKeys(t *testing.T) {
	saltA := bytes.Repeat([]byte{0x01}, SaltSize)
	saltB := bytes.Repeat([]byte{0x02}, SaltSize)

	keyA, err := Derive([]byte("secret"), saltA)
	require.NoError(t, err)
	keyB, err := Derive([]byte("secret"), saltB)
	require.NoError(t, err)
	keyC, err := Derive([]byte("other"), saltA)
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB, "different salts must yield different keys")
	assert.NotEqual(t, keyA, keyC, "different secrets must yield different keys")
}

func TestDerive_InvalidInputs(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, SaltSize)

	_, err := Derive(nil, salt)
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Derive([]byte("s"), []byte("short"))
	assert.ErrorIs(t, err, ErrBadSaltSize)
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltSize)
	assert.NotEqual(t, a, b, "two salts should differ")
}
