package neocities

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
)

// HashSHA1 returns the lowercase hex SHA-1 of r, the digest the API reports
// as sha1_hash.
func HashSHA1(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
