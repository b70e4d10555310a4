package events

import (
	"strconv"
	"strings"

	"peerlend/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}

func formatAddress(addr [20]byte) string {
	return crypto.FromRaw(addr).String()
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
