package lending

import (
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "peerlend/core/errors"
)

// daySeconds is the length of one day in the ledger clock.
const daySeconds int64 = 86_400

func mulU64(a, b uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !product.IsUint64() {
		return 0, coreerrors.ErrOverflowOrUnderflowOccurred
	}
	return product.Uint64(), nil
}

func subU64(a, b uint64) (uint64, error) {
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, coreerrors.ErrOverflowOrUnderflowOccurred
	}
	return diff.Uint64(), nil
}

// daysToSeconds converts a day count into signed seconds, rejecting results
// outside the int64 range.
func daysToSeconds(days uint64) (int64, error) {
	product := new(big.Int).Mul(big.NewInt(daySeconds), new(big.Int).SetUint64(days))
	if !product.IsInt64() {
		return 0, coreerrors.ErrOverflowOrUnderflowOccurred
	}
	return product.Int64(), nil
}

func addI64(a, b int64) (int64, error) {
	sum := new(big.Int).Add(big.NewInt(a), big.NewInt(b))
	if !sum.IsInt64() {
		return 0, coreerrors.ErrOverflowOrUnderflowOccurred
	}
	return sum.Int64(), nil
}

// feeAmount applies a whole-percent rate after truncating amount to
// hundreds: (amount / 100) * rate.
func feeAmount(amount, rate uint64) (uint64, error) {
	return mulU64(amount/100, rate)
}
