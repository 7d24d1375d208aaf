package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Checksum computes the SHA256 of a file's content, hex-encoded. Used
// to record an integrity baseline alongside rename history.
func Checksum(fsys ReadFS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
