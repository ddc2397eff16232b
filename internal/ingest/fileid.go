package ingest

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// newFileID generates a file_id of the form file_{10-digit unix
// seconds}_{8 lowercase hex random}_{8 lowercase hex content sha256
// prefix}.
func newFileID(unixSeconds int64, content []byte) (string, error) {
	var random [4]byte
	if _, err := rand.Read(random[:]); err != nil {
		return "", fmt.Errorf("generate random component: %w", err)
	}
	sum := sha256.Sum256(content)
	return fmt.Sprintf("file_%010d_%s_%s", unixSeconds, hex.EncodeToString(random[:]), hex.EncodeToString(sum[:4])), nil
}
