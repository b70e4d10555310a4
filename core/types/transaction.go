package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer         TxType = 0x01 // Owner-initiated vault transfer
	TxTypeCreateLoan       TxType = 0x10 // Lender escrows a loan offer
	TxTypeBorrowLoan       TxType = 0x11 // Borrower claims an offer against collateral
	TxTypeCancelLoan       TxType = 0x12 // Lender reclaims collateral
	TxTypeRepayLoan        TxType = 0x13 // Borrower settles and reclaims collateral
	TxTypeConfigure        TxType = 0x20 // Authority updates global lending parameters
	TxTypeProposeAuthority TxType = 0x21 // Authority nominates a successor
	TxTypeAcceptAuthority  TxType = 0x22 // Nominee claims the authority role
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:         "transfer",
	TxTypeCreateLoan:       "create_loan",
	TxTypeBorrowLoan:       "borrow_loan",
	TxTypeCancelLoan:       "cancel_loan",
	TxTypeRepayLoan:        "repay_loan",
	TxTypeConfigure:        "configure",
	TxTypeProposeAuthority: "propose_authority",
	TxTypeAcceptAuthority:  "accept_authority",
}

// String returns the label used in logs and metrics.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether the type is understood by the executor.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

var ErrMissingSignature = errors.New("transaction: missing signature")

// Transaction is a signed request to apply one state transition. Data carries
// the JSON payload matching Type.
type Transaction struct {
	ChainID uint64          `json:"chainId"`
	Type    TxType          `json:"type"`
	Nonce   uint64          `json:"nonce"`
	Data    json.RawMessage `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

// Hash covers every field except the signature.
func (tx *Transaction) Hash() ([]byte, error) {
	txData := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		Data    json.RawMessage
	}{tx.ChainID, tx.Type, tx.Nonce, tx.Data}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the 20-byte sender from the signature.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	if len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 || tx.V.Uint64() < 27 {
		return nil, fmt.Errorf("transaction: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

// SetPayload encodes payload into Data. Any existing signature becomes stale.
func (tx *Transaction) SetPayload(payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	tx.Data = raw
	tx.R, tx.S, tx.V = nil, nil, nil
	tx.from = nil
	return nil
}

// DecodePayload unmarshals Data into out, rejecting unknown fields.
func (tx *Transaction) DecodePayload(out interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("transaction: empty payload")
	}
	dec := json.NewDecoder(bytesReader(tx.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("transaction: decode %s payload: %w", tx.Type, err)
	}
	return nil
}
