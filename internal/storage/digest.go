package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Digest returns the hex SHA-256 of data. Backends report it as UploadResult.Checksum.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// MatchesDigest drains r and reports whether its SHA-256 equals want.
func MatchesDigest(r io.Reader, want string) (bool, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return false, fmt.Errorf("failed to read object for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)) == want, nil
}
