package lending

import (
	"peerlend/crypto"
	"peerlend/native/token"
)

const loanSeed = "loan"

// LoanAuthority derives the signing authority of the loan identified by
// (lender, key). Its address is the loan ID and owns both escrow vaults.
func LoanAuthority(lender [20]byte, key [32]byte) (*crypto.DerivedAuthority, error) {
	return crypto.NewDerivedAuthority(crypto.LendingProgramID, []byte(loanSeed), lender[:], key[:])
}

// LoanID returns the identifier of the loan created by lender with key.
func LoanID(lender [20]byte, key [32]byte) ([20]byte, error) {
	return crypto.DeriveAddress(crypto.LendingProgramID, []byte(loanSeed), lender[:], key[:])
}

// EscrowVaults returns the addresses of the loan-asset and collateral escrow
// vaults owned by the loan.
func EscrowVaults(l *Loan) (loanVault [20]byte, collateralVault [20]byte, err error) {
	if loanVault, err = token.VaultAddress(l.ID, l.LoanAsset); err != nil {
		return
	}
	collateralVault, err = token.VaultAddress(l.ID, l.CollateralAsset)
	return
}

func (e *Engine) authorityFor(l *Loan) (*crypto.DerivedAuthority, error) {
	authority, err := LoanAuthority(l.Lender, l.Key)
	if err != nil {
		return nil, err
	}
	if authority.Address != l.ID {
		return nil, errLoanIdentity
	}
	return authority, nil
}
