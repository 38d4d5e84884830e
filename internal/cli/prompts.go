package cli

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/mrz1836/walletlink/internal/adapter/hdwallet"
	"github.com/mrz1836/walletlink/internal/config"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

// minPassphraseLength is the shortest keystore passphrase accepted.
const minPassphraseLength = 8

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // swapped by tests
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
)

// promptPassword prompts for a password with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
	outln(os.Stderr) // Add newline after hidden input

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	return password, nil
}

// promptNewPassword prompts for a new password with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Enter keystore passphrase: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPassphraseLength {
		zeroBytes(password)
		return nil, linkerr.WithSuggestion(
			linkerr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		zeroBytes(password)
		return nil, err
	}
	defer zeroBytes(confirm)

	if string(password) != string(confirm) {
		zeroBytes(password)
		return nil, linkerr.WithSuggestion(
			linkerr.ErrInvalidInput,
			"passphrases do not match",
		)
	}

	return password, nil
}

// keystorePassphrase returns the unlock callback used by the keystore
// adapter. WALLETLINK_KEYSTORE_PASSPHRASE wins over the terminal prompt, and
// without either the connect fails with an authentication error.
func keystorePassphrase() hdwallet.PassphraseFunc {
	return func(context.Context) ([]byte, error) {
		if v := os.Getenv(config.EnvKeystorePassphrase); v != "" {
			return []byte(v), nil
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // fd fits in int
			return nil, linkerr.WithSuggestion(linkerr.ErrAuthentication,
				"set "+config.EnvKeystorePassphrase+" or run walletlink from a terminal")
		}
		return promptPasswordFn("Keystore passphrase: ")
	}
}

// zeroBytes overwrites b with zeros.
func zeroBytes(b []byte) {
	clear(b)
}
