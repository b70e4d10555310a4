package state

var (
	tokenRecordPrefix     = []byte("token/meta/")
	tokenIndexKey         = []byte("token/index")
	vaultRecordPrefix     = []byte("token/vault/")
	loanRecordPrefix      = []byte("lending/loan/")
	loanLenderIndexPrefix = []byte("lending/lender/")
	loanLenderCountPrefix = []byte("lending/lender-count/")
	paramStorePrefix      = []byte("params/")
	accountNoncePrefix    = []byte("account/nonce/")
	quotaPrefix           = []byte("quota/")
	genesisHashKey        = []byte("genesis/hash")
)

func prefixedKey(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}
