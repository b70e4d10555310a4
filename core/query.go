package core

import (
	"errors"

	"peerlend/native/lending"
	"peerlend/native/params"
	"peerlend/native/token"
)

// ErrLoanNotFound is returned by Loan for unknown identifiers.
var ErrLoanNotFound = lending.ErrLoanNotFound

// Loan returns the stored loan identified by id.
func (n *Node) Loan(id [20]byte) (*lending.Loan, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	loan, ok, err := n.lending.Loan(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// LoansByLender lists every loan created by lender in creation order.
func (n *Node) LoansByLender(lender [20]byte) ([]*lending.Loan, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.LoansByLender(lender)
}

// Vault returns the vault held by owner for asset.
func (n *Node) Vault(owner [20]byte, asset string) (*token.Vault, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.Vault(owner, asset)
}

// Balance returns owner's balance of asset; missing vaults hold zero.
func (n *Node) Balance(owner [20]byte, asset string) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.Balance(owner, asset)
}

// LendingConfig returns the current global lending configuration.
func (n *Node) LendingConfig() (params.GlobalConfig, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.params.LendingConfig()
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Nonce(addr)
}

// Tokens lists the registered assets.
func (n *Node) Tokens() ([]token.Metadata, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.TokenList()
}

// IsLoanNotFound reports whether err means the loan does not exist.
func IsLoanNotFound(err error) bool {
	return errors.Is(err, lending.ErrLoanNotFound)
}
