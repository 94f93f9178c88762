package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// TransferKey scopes a client supplied Idempotency-Key to the paying
// account, so two clients picking the same key never share a result.
func TransferKey(phone, clientKey string) string {
	return scopedKey("transfer", phone, clientKey)
}

func scopedKey(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		// length prefix keeps ("a:b", "c") and ("a", "b:c") apart
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}

	return hex.EncodeToString(h.Sum(nil))
}
