package copay

import (
	"crypto/sha256"
	"encoding/hex"
)

// CopayerID derives the opaque participant identifier from an extended
// public key, the convention the wallet service uses to recognize a party
// across proposals and actions.
func CopayerID(xPubKey string) string {
	hash := sha256.Sum256([]byte(xPubKey))
	return hex.EncodeToString(hash[:])
}
