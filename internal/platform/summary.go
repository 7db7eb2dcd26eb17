package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const digestLen = 12

// payloadDigest returns a short content hash for ledger summaries. Bodies
// are digested rather than stored so auth material and full content never
// land in the ledger.
func payloadDigest(payload []byte) string {
	if len(payload) == 0 {
		return "empty"
	}
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])[:digestLen]
}

// RequestSummary formats one outgoing call for the execution ledger.
func RequestSummary(method, endpoint string, payload []byte) string {
	return fmt.Sprintf("%s %s payload=%s", method, endpoint, payloadDigest(payload))
}

// ResponseSummary formats one response for the execution ledger.
func ResponseSummary(status int, body []byte) string {
	return fmt.Sprintf("status=%d body=%s", status, payloadDigest(body))
}

// ErrorSummary formats a failed call (no response received) for the ledger.
func ErrorSummary(err error) string {
	return fmt.Sprintf("error=%v", err)
}
