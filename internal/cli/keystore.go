package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/adapter/hdwallet"
	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// keystoreWords is the number of words for mnemonic generation.
	keystoreWords int
	// keystoreRestore imports an existing mnemonic instead of generating one.
	keystoreRestore bool
	// keystoreAccount and keystoreIndex select the derivation path.
	keystoreAccount uint32
	keystoreIndex   uint32
)

// keystoreInitOutput is the JSON body of keystore init.
type keystoreInitOutput struct {
	*hdwallet.KeystoreInfo

	DerivationPath string `json:"derivation_path"`
	Mnemonic       string `json:"mnemonic,omitempty"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var (
	keystoreCmd = &cobra.Command{
		Use:   "keystore",
		Short: "Manage the Keystore provider's encrypted mnemonic",
		Long: `Create and inspect the age-encrypted BIP39 mnemonic used by the Keystore
wallet provider.`,
	}

	keystoreInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create the keystore",
		Long: `Create the keystore at keystore.path. A new mnemonic is generated unless
--restore is given, in which case the mnemonic is read from the terminal.

The passphrase comes from WALLETLINK_KEYSTORE_PASSPHRASE when set, otherwise
it is prompted for twice. An existing keystore is never overwritten.`,
		Example: `  walletlink keystore init
  walletlink keystore init --words 12
  walletlink keystore init --restore --account 1`,
		Args: cobra.NoArgs,
		RunE: runKeystoreInit,
	}

	keystoreShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show keystore details",
		Long:  `Show the public details of the keystore. No passphrase is needed.`,
		Example: `  walletlink keystore show
  walletlink keystore show -o json`,
		Args: cobra.NoArgs,
		RunE: runKeystoreShow,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	keystoreCmd.GroupID = groupSecurity

	keystoreInitCmd.Flags().IntVar(&keystoreWords, "words", 24, "mnemonic length: 12 or 24")
	keystoreInitCmd.Flags().BoolVar(&keystoreRestore, "restore", false, "import an existing mnemonic")
	keystoreInitCmd.Flags().Uint32Var(&keystoreAccount, "account", 0, "BIP44 account (default: keystore.account)")
	keystoreInitCmd.Flags().Uint32Var(&keystoreIndex, "index", 0, "BIP44 address index (default: keystore.index)")
	keystoreInitCmd.MarkFlagsMutuallyExclusive("words", "restore")

	keystoreCmd.AddCommand(keystoreInitCmd, keystoreShowCmd)
	rootCmd.AddCommand(keystoreCmd)
}

func runKeystoreInit(cmd *cobra.Command, _ []string) error {
	account, index := cfg.Keystore.Account, cfg.Keystore.Index
	if cmd.Flags().Changed("account") {
		account = keystoreAccount
	}
	if cmd.Flags().Changed("index") {
		index = keystoreIndex
	}

	var (
		mnemonic  string
		generated bool
	)
	if keystoreRestore {
		raw, err := promptPasswordFn("Enter mnemonic (input hidden): ")
		if err != nil {
			return err
		}
		mnemonic = strings.Join(strings.Fields(string(raw)), " ")
		zeroBytes(raw)
	} else {
		var err error
		if mnemonic, err = hdwallet.GenerateMnemonic(keystoreWords); err != nil {
			return err
		}
		generated = true
	}

	passphrase, err := newKeystorePassphrase()
	if err != nil {
		return err
	}
	defer zeroBytes(passphrase)

	info, err := hdwallet.CreateKeystore(cfg.KeystorePath(), mnemonic, passphrase, account, index)
	if err != nil {
		return err
	}
	logger.Info("keystore created at %s for %s", info.Path, info.Identity)

	w := cmd.OutOrStdout()
	if isJSON() {
		body := keystoreInitOutput{KeystoreInfo: info, DerivationPath: hdwallet.DerivationPath(info.Account, info.Index)}
		if generated {
			body.Mnemonic = mnemonic
		}
		return writeJSON(w, body)
	}

	output.Successf(w, "Keystore created at %s", info.Path)
	out(w, "Identity: %s\n", info.Identity)
	out(w, "Path:     %s\n", hdwallet.DerivationPath(info.Account, info.Index))
	if generated {
		outln(w)
		output.Warnf(w, "Write down this mnemonic. It is the only way to recover the keystore:")
		outln(w)
		out(w, "  %s\n", mnemonic)
	}
	return nil
}

// newKeystorePassphrase reads the passphrase from the environment or prompts
// for it with confirmation.
func newKeystorePassphrase() ([]byte, error) {
	if v := os.Getenv(config.EnvKeystorePassphrase); v != "" {
		return []byte(v), nil
	}
	return promptNewPasswordFn()
}

func runKeystoreShow(cmd *cobra.Command, _ []string) error {
	info, err := hdwallet.ReadKeystoreInfo(cfg.KeystorePath())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if isJSON() {
		return writeJSON(w, keystoreInitOutput{KeystoreInfo: info, DerivationPath: hdwallet.DerivationPath(info.Account, info.Index)})
	}
	out(w, "Keystore: %s\n", info.Path)
	out(w, "Identity: %s\n", info.Identity)
	out(w, "Path:     %s\n", hdwallet.DerivationPath(info.Account, info.Index))
	out(w, "Created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
