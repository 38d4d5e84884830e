package cli

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"

	"github.com/mrz1836/walletlink/internal/config"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

var errTestTTY = errors.New("not a terminal")

// scriptedPrompts answers promptPasswordFn calls in order.
func scriptedPrompts(t *testing.T, answers ...string) *[]string {
	t.Helper()
	orig := promptPasswordFn
	t.Cleanup(func() { promptPasswordFn = orig })

	var asked []string
	promptPasswordFn = func(prompt string) ([]byte, error) {
		asked = append(asked, prompt)
		if len(answers) == 0 {
			return nil, errTestTTY
		}
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
	return &asked
}

func TestPromptNewPassword_Success(t *testing.T) {
	asked := scriptedPrompts(t, "correct horse", "correct horse")

	result, err := promptNewPassword()
	require.NoError(t, err)
	assert.Equal(t, []byte("correct horse"), result)
	assert.Len(t, *asked, 2)
}

func TestPromptNewPassword_TooShort(t *testing.T) {
	asked := scriptedPrompts(t, "short")

	result, err := promptNewPassword()
	require.ErrorIs(t, err, linkerr.ErrInvalidInput)
	assert.Nil(t, result)
	assert.Len(t, *asked, 1, "confirmation must not be requested")
}

func TestPromptNewPassword_Mismatch(t *testing.T) {
	scriptedPrompts(t, "password-one", "password-two")

	result, err := promptNewPassword()
	require.ErrorIs(t, err, linkerr.ErrInvalidInput)
	assert.Nil(t, result)
	assert.Contains(t, linkerr.SuggestionOf(err), "do not match")
}

func TestPromptNewPassword_ReadError(t *testing.T) {
	scriptedPrompts(t, "password-one")

	_, err := promptNewPassword()
	require.ErrorIs(t, err, errTestTTY)
}

func TestKeystorePassphrase_FromEnvironment(t *testing.T) {
	t.Setenv(config.EnvKeystorePassphrase, "env-passphrase")
	asked := scriptedPrompts(t)

	pass, err := keystorePassphrase()(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("env-passphrase"), pass)
	assert.Empty(t, *asked)
}

func TestKeystorePassphrase_NoTerminal(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
		t.Skip("stdin is a terminal")
	}
	t.Setenv(config.EnvKeystorePassphrase, "")
	scriptedPrompts(t)

	_, err := keystorePassphrase()(context.Background())
	require.ErrorIs(t, err, linkerr.ErrAuthentication)
	assert.Contains(t, linkerr.SuggestionOf(err), config.EnvKeystorePassphrase)
}

func TestNewKeystorePassphrase(t *testing.T) {
	withMockPrompts(t, []byte("prompted-pass"))

	t.Setenv(config.EnvKeystorePassphrase, "")
	pass, err := newKeystorePassphrase()
	require.NoError(t, err)
	assert.Equal(t, []byte("prompted-pass"), pass)

	t.Setenv(config.EnvKeystorePassphrase, "env-pass")
	pass, err = newKeystorePassphrase()
	require.NoError(t, err)
	assert.Equal(t, []byte("env-pass"), pass)
}

func TestZeroBytes(t *testing.T) {
	t.Parallel()

	b := []byte("secret")
	zeroBytes(b)
	assert.Equal(t, make([]byte, 6), b)
	assert.NotPanics(t, func() { zeroBytes(nil) })
}
