package utils_test

import (
	"testing"

	"panel-bridge/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := utils.EncryptString("master-key", "panel-api-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "panel-api-secret", encrypted)

	decrypted, err := utils.DecryptString("master-key", encrypted)
	require.NoError(t, err)
	assert.Equal(t, "panel-api-secret", decrypted)
}

func TestEncryptProducesFreshCiphertext(t *testing.T) {
	first, err := utils.EncryptString("master-key", "secret")
	require.NoError(t, err)
	second, err := utils.EncryptString("master-key", "secret")
	require.NoError(t, err)

	// Random nonce: the same plaintext never encrypts to the same string.
	assert.NotEqual(t, first, second)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	encrypted, err := utils.EncryptString("master-key", "secret")
	require.NoError(t, err)

	_, err = utils.DecryptString("other-key", encrypted)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := utils.DecryptString("master-key", "not base64 at all!!!")
	assert.Error(t, err)

	_, err = utils.DecryptString("master-key", "c2hvcnQ=")
	assert.Error(t, err)
}

func TestEmptyKeyRejected(t *testing.T) {
	_, err := utils.EncryptString("", "secret")
	assert.Error(t, err)

	_, err = utils.DecryptString("", "anything")
	assert.Error(t, err)
}
