package hdwallet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"filippo.io/age"
	"github.com/tyler-smith/go-bip39"

	"github.com/mrz1836/walletlink/internal/fileutil"
	linkerr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	// keystoreVersion is the current keystore file format.
	keystoreVersion = 1

	// keystorePermissions is the permission mode for keystore files.
	keystorePermissions = 0o600
)

// workFactor overrides the age scrypt work factor when non-zero.
var workFactor int //nolint:gochecknoglobals // lowered in tests

// keystoreFile is the on-disk keystore. Only the mnemonic is encrypted; the
// identity is kept in clear so status commands work without a passphrase.
type keystoreFile struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Account   uint32    `json:"account"`
	Index     uint32    `json:"index"`
	Identity  string    `json:"identity"`
	Mnemonic  []byte    `json:"encrypted_mnemonic"`
}

// KeystoreInfo is the public part of a keystore.
type KeystoreInfo struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Account   uint32    `json:"account"`
	Index     uint32    `json:"index"`
	Identity  string    `json:"identity"`
}

// CreateKeystore encrypts mnemonic with passphrase and writes it to path. It
// refuses to overwrite an existing keystore.
func CreateKeystore(path, mnemonic string, passphrase []byte, account, index uint32) (*KeystoreInfo, error) {
	if fileutil.Exists(path) {
		return nil, linkerr.WithDetails(linkerr.ErrKeystoreExists, map[string]string{"path": path})
	}
	if len(passphrase) == 0 {
		return nil, linkerr.WithSuggestion(linkerr.ErrInvalidInput, "a keystore passphrase is required")
	}
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, linkerr.Wrap(linkerr.ErrInvalidMnemonic, "%v", err)
	}

	seed := bip39.NewSeed(mnemonic, "")
	defer wipe(seed)
	identity, err := DeriveIdentity(seed, account, index)
	if err != nil {
		return nil, err
	}

	ciphertext, err := encrypt([]byte(mnemonic), string(passphrase))
	if err != nil {
		return nil, fmt.Errorf("encrypting keystore: %w", err)
	}

	ks := keystoreFile{
		Version:   keystoreVersion,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Account:   account,
		Index:     index,
		Identity:  identity,
		Mnemonic:  ciphertext,
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := fileutil.WriteAtomic(path, data, keystorePermissions); err != nil {
		return nil, fmt.Errorf("writing keystore: %w", err)
	}
	return ks.info(path), nil
}

// ReadKeystoreInfo returns the unencrypted metadata of the keystore at path.
func ReadKeystoreInfo(path string) (*KeystoreInfo, error) {
	ks, err := readKeystore(path)
	if err != nil {
		return nil, err
	}
	return ks.info(path), nil
}

// unlockKeystore decrypts the mnemonic and returns its BIP39 seed in locked
// memory together with the keystore metadata.
func unlockKeystore(path string, passphrase []byte) (*secret, *keystoreFile, error) {
	ks, err := readKeystore(path)
	if err != nil {
		return nil, nil, err
	}

	mnemonic, err := decrypt(ks.Mnemonic, string(passphrase))
	if err != nil {
		return nil, nil, linkerr.WithDetails(linkerr.ErrDecryptionFailed, map[string]string{"path": path})
	}
	defer wipe(mnemonic)

	if err := ValidateMnemonic(string(mnemonic)); err != nil {
		return nil, nil, linkerr.Wrap(linkerr.ErrInvalidMnemonic, "keystore %s", path)
	}

	seed := bip39.NewSeed(string(mnemonic), "")
	defer wipe(seed)
	return newSecret(seed), ks, nil
}

func readKeystore(path string) (*keystoreFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, linkerr.WithSuggestion(
				linkerr.WithDetails(linkerr.ErrKeystoreNotFound, map[string]string{"path": path}),
				"create one with: walletlink keystore init",
			)
		}
		return nil, fmt.Errorf("reading keystore: %w", err)
	}

	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, linkerr.Wrap(linkerr.ErrInvalidInput, "parsing keystore %s: %v", path, err)
	}
	if ks.Version != keystoreVersion || len(ks.Mnemonic) == 0 {
		return nil, linkerr.WithDetails(linkerr.ErrInvalidInput, map[string]string{
			"path":    path,
			"version": fmt.Sprintf("%d", ks.Version),
		})
	}
	return &ks, nil
}

func (ks *keystoreFile) info(path string) *KeystoreInfo {
	return &KeystoreInfo{
		Path:      path,
		CreatedAt: ks.CreatedAt,
		Account:   ks.Account,
		Index:     ks.Index,
		Identity:  ks.Identity,
	}
}

// encrypt encrypts plaintext with an age scrypt recipient.
func encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, err
	}
	if workFactor > 0 {
		recipient.SetWorkFactor(workFactor)
	}

	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decrypt decrypts ciphertext with an age scrypt identity.
func decrypt(ciphertext []byte, passphrase string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
