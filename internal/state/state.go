// Package state is the in-memory application state container. Components
// publish into it with Update and observe it with Read or Subscribe.
package state

import (
	"math/big"
	"slices"
	"time"

	"github.com/mrz1836/walletlink/internal/adapter"
)

// Wallet is the published view of the active adapter.
// Only the session manager writes these fields.
type Wallet struct {
	Current     adapter.Adapter
	Connected   bool
	ProviderURL string
}

// Connection holds the network endpoint adapters are bound to.
type Connection struct {
	Endpoint string
}

// Group is the market group metadata fetched after connect.
type Group struct {
	Name      string    `json:"name"`
	ChainID   uint64    `json:"chainId"`
	Markets   []string  `json:"markets"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Balance is a wallet balance for one asset.
type Balance struct {
	Symbol   string   `json:"symbol"`
	Amount   *big.Int `json:"amount"`
	Decimals int      `json:"decimals"`
}

// AuxAccount is an auxiliary (fee/stake) account owned by the identity.
type AuxAccount struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Balance string `json:"balance"`
}

// MarginAccount is a user-owned trading account.
type MarginAccount struct {
	ID     string `json:"id"`
	Owner  string `json:"owner"`
	Equity string `json:"equity"`
}

// Trade is one fill in a margin account's trade history.
type Trade struct {
	ID            string    `json:"id"`
	MarginAccount string    `json:"marginAccount"`
	Market        string    `json:"market"`
	Side          string    `json:"side"`
	Size          string    `json:"size"`
	Price         string    `json:"price"`
	Time          time.Time `json:"time"`
}

// State is the full published surface.
type State struct {
	// Version increments on every Update.
	Version uint64

	Wallet                Wallet
	Connection            Connection
	Group                 *Group
	Balances              []Balance
	AuxAccounts           []AuxAccount
	MarginAccounts        []MarginAccount
	SelectedMarginAccount *MarginAccount
	TradeHistory          []Trade
}

// ClearSession drops the data that is meaningless without a connected
// identity.
func (s *State) ClearSession() {
	s.MarginAccounts = nil
	s.SelectedMarginAccount = nil
	s.TradeHistory = nil
}

// HasSelectedMarginAccount reports whether a margin account is selected.
func (s State) HasSelectedMarginAccount() bool {
	return s.SelectedMarginAccount != nil
}

// clone returns a copy that shares no slices or pointers with s.
func (s State) clone() State {
	out := s
	if s.Group != nil {
		g := *s.Group
		g.Markets = slices.Clone(s.Group.Markets)
		out.Group = &g
	}
	out.Balances = slices.Clone(s.Balances)
	out.AuxAccounts = slices.Clone(s.AuxAccounts)
	out.MarginAccounts = slices.Clone(s.MarginAccounts)
	out.TradeHistory = slices.Clone(s.TradeHistory)
	if s.SelectedMarginAccount != nil {
		m := *s.SelectedMarginAccount
		out.SelectedMarginAccount = &m
	}
	return out
}
