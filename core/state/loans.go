package state

import (
	"encoding/binary"
	"fmt"

	"peerlend/native/lending"
)

// storedLoan mirrors lending.Loan. RLP has no signed integers, so timestamps
// and the duration are stored as their two's complement bit patterns.
type storedLoan struct {
	ID               [20]byte
	Key              [32]byte
	Lender           [20]byte
	Borrower         [20]byte
	LoanAsset        string
	LoanAmount       uint64
	InterestRate     uint64
	DurationSeconds  uint64
	CollateralAsset  string
	CollateralAmount uint64
	CreateDate       uint64
	ExpireDate       uint64
	BorrowDate       uint64
	Repaid           bool
	Cancelled        bool
}

func newStoredLoan(l *lending.Loan) *storedLoan {
	return &storedLoan{
		ID:               l.ID,
		Key:              l.Key,
		Lender:           l.Lender,
		Borrower:         l.Borrower,
		LoanAsset:        l.LoanAsset,
		LoanAmount:       l.LoanAmount,
		InterestRate:     l.InterestRate,
		DurationSeconds:  uint64(l.DurationSeconds),
		CollateralAsset:  l.CollateralAsset,
		CollateralAmount: l.CollateralAmount,
		CreateDate:       uint64(l.CreateDate),
		ExpireDate:       uint64(l.ExpireDate),
		BorrowDate:       uint64(l.BorrowDate),
		Repaid:           l.Repaid,
		Cancelled:        l.Cancelled,
	}
}

func (s *storedLoan) toLoan() *lending.Loan {
	return &lending.Loan{
		ID:               s.ID,
		Key:              s.Key,
		Lender:           s.Lender,
		Borrower:         s.Borrower,
		LoanAsset:        s.LoanAsset,
		LoanAmount:       s.LoanAmount,
		InterestRate:     s.InterestRate,
		DurationSeconds:  int64(s.DurationSeconds),
		CollateralAsset:  s.CollateralAsset,
		CollateralAmount: s.CollateralAmount,
		CreateDate:       int64(s.CreateDate),
		ExpireDate:       int64(s.ExpireDate),
		BorrowDate:       int64(s.BorrowDate),
		Repaid:           s.Repaid,
		Cancelled:        s.Cancelled,
	}
}

func loanKey(id [20]byte) []byte {
	return prefixedKey(loanRecordPrefix, id[:])
}

func lenderCountKey(lender [20]byte) []byte {
	return prefixedKey(loanLenderCountPrefix, lender[:])
}

func lenderEntryKey(lender [20]byte, seq uint64) []byte {
	suffix := make([]byte, 0, len(lender)+8)
	suffix = append(suffix, lender[:]...)
	suffix = binary.BigEndian.AppendUint64(suffix, seq)
	return prefixedKey(loanLenderIndexPrefix, suffix)
}

func (m *Manager) lenderLoanCount(lender [20]byte) (uint64, error) {
	var count uint64
	if _, err := m.KVGet(lenderCountKey(lender), &count); err != nil {
		return 0, err
	}
	return count, nil
}

// LoanPut persists the loan. The first write also appends it to its lender's
// index as a sequence-numbered entry and bumps the lender's counter.
func (m *Manager) LoanPut(l *lending.Loan) error {
	if l == nil {
		return fmt.Errorf("state: nil loan")
	}
	key := loanKey(l.ID)
	existed, err := m.KVGet(key, nil)
	if err != nil {
		return err
	}
	if err := m.KVPut(key, newStoredLoan(l)); err != nil {
		return err
	}
	if existed {
		return nil
	}
	count, err := m.lenderLoanCount(l.Lender)
	if err != nil {
		return err
	}
	if err := m.KVPut(lenderEntryKey(l.Lender, count), l.ID); err != nil {
		return err
	}
	return m.KVPut(lenderCountKey(l.Lender), count+1)
}

// LoanGet loads the loan with the supplied identifier.
func (m *Manager) LoanGet(id [20]byte) (*lending.Loan, bool, error) {
	var stored storedLoan
	ok, err := m.KVGet(loanKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toLoan(), true, nil
}

// LoansByLender returns every loan created by lender in creation order.
func (m *Manager) LoansByLender(lender [20]byte) ([]*lending.Loan, error) {
	count, err := m.lenderLoanCount(lender)
	if err != nil {
		return nil, err
	}
	out := make([]*lending.Loan, 0, count)
	for seq := uint64(0); seq < count; seq++ {
		var id [20]byte
		ok, err := m.KVGet(lenderEntryKey(lender, seq), &id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: lender index entry %d missing", seq)
		}
		loan, ok, err := m.LoanGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("state: lender index references missing loan %x", id)
		}
		out = append(out, loan)
	}
	return out, nil
}
