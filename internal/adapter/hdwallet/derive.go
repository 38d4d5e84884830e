package hdwallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"
)

// coinType is the SLIP-44 coin type for Ethereum.
const coinType = 60

var (
	// ErrInvalidWordCount indicates the mnemonic must be 12 or 24 words.
	ErrInvalidWordCount = errors.New("word count must be 12 or 24")

	// ErrInvalidMnemonic indicates the mnemonic failed BIP39 validation.
	ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")
)

// GenerateMnemonic creates a new BIP39 mnemonic of 12 or 24 words.
func GenerateMnemonic(words int) (string, error) {
	var bits int
	switch words {
	case 12:
		bits = 128
	case 24:
		bits = 256
	default:
		return "", ErrInvalidWordCount
	}

	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", err
	}
	defer wipe(entropy)
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic checks words, checksum and length.
func ValidateMnemonic(mnemonic string) error {
	if !bip39.IsMnemonicValid(mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// DerivationPath returns the BIP44 path for account and index.
func DerivationPath(account, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/%d", coinType, account, index)
}

// DeriveIdentity derives the EIP-55 address at m/44'/60'/account'/0/index.
func DeriveIdentity(seed []byte, account, index uint32) (string, error) {
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return "", fmt.Errorf("failed to create master key: %w", err)
	}

	key := master
	for _, child := range []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + coinType,
		bip32.FirstHardenedChild + account,
		0,
		index,
	} {
		if key, err = key.NewChildKey(child); err != nil {
			return "", fmt.Errorf("deriving %s: %w", DerivationPath(account, index), err)
		}
	}

	return addressFromCompressed(key.PublicKey().Key)
}

// addressFromCompressed hashes the uncompressed public key with Keccak-256 and
// keeps the last 20 bytes.
func addressFromCompressed(compressed []byte) (string, error) {
	pub, err := ethcrypto.DecompressPubkey(compressed)
	if err != nil {
		return "", fmt.Errorf("decompressing public key: %w", err)
	}
	raw := ethcrypto.FromECDSAPub(pub)

	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:])
	return common.BytesToAddress(h.Sum(nil)[12:]).Hex(), nil
}
