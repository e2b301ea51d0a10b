package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the SHA256 hex digest of extracted content, used for
// change detection between crawls.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
