package events

import (
	"peerlend/core/types"
)

const (
	// TypeVaultCreated is emitted when a vault is lazily created for an
	// (owner, asset) pair.
	TypeVaultCreated = "vault.created"
	// TypeTransfer is emitted for every balance movement between vaults.
	TypeTransfer = "token.transfer"
	// TypeMint is emitted when supply enters the ledger through genesis or
	// the devnet faucet.
	TypeMint = "token.mint"
)

// Authorization labels how a transfer was authorised.
const (
	AuthorizationUser   = "user"
	AuthorizationEscrow = "escrow"
)

type VaultCreated struct {
	Vault [20]byte
	Owner [20]byte
	Asset string
	Payer [20]byte
}

func (VaultCreated) EventType() string { return TypeVaultCreated }

func (e VaultCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultCreated,
		Attributes: map[string]string{
			"vault": formatAddress(e.Vault),
			"owner": formatAddress(e.Owner),
			"asset": normalizeAsset(e.Asset),
			"payer": formatAddress(e.Payer),
		},
	}
}

type Transfer struct {
	Asset         string
	From          [20]byte
	To            [20]byte
	Amount        uint64
	Authorization string
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{}
	if asset := normalizeAsset(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	attrs["from"] = formatAddress(e.From)
	attrs["to"] = formatAddress(e.To)
	attrs["amount"] = formatAmount(e.Amount)
	if e.Authorization != "" {
		attrs["authorization"] = e.Authorization
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

type Mint struct {
	Asset  string
	Vault  [20]byte
	Amount uint64
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{
		Type: TypeMint,
		Attributes: map[string]string{
			"asset":  normalizeAsset(e.Asset),
			"vault":  formatAddress(e.Vault),
			"amount": formatAmount(e.Amount),
		},
	}
}
