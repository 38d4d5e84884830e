package config

import "time"

// DefaultEndpoint is the default network endpoint.
// Uses PublicNode (Allnodes), a privacy-first provider that requires no API key.
const DefaultEndpoint = "https://ethereum-rpc.publicnode.com"

// Refresh defaults.
const (
	DefaultAccountsInterval = 20 * time.Second
	DefaultTradesInterval   = 180 * time.Second
)

// Overlap policies for refresh tasks.
const (
	OverlapSkip  = "skip"
	OverlapAllow = "allow"
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.walletlink",
		Network: NetworkConfig{
			Endpoint: DefaultEndpoint,
		},
		Session: SessionConfig{
			AutoConnect:      true,
			RedactHead:       5,
			RedactTail:       5,
			HostReadyDelayMS: 0,
		},
		Refresh: RefreshConfig{
			AccountsInterval: DefaultAccountsInterval,
			TradesInterval:   DefaultTradesInterval,
			Overlap:          OverlapSkip,
		},
		Keystore: KeystoreConfig{
			Path:    "keystore.age",
			Account: 0,
			Index:   0,
		},
		Backend: BackendConfig{
			RatePerSecond:  5,
			Burst:          10,
			TimeoutSeconds: 30,
		},
		Selection: SelectionConfig{
			File:  "selection.json",
			Watch: true,
		},
		API: APIConfig{
			Listen: "",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level:      "error",
			File:       "~/.walletlink/walletlink.log",
			MaxSizeMB:  25,
			MaxBackups: 5,
		},
	}
}
