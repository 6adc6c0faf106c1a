// Package fileid derives content identifiers for query descriptor files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const prefix = "sha256:"

// ContentID returns an identifier of the bytes in r. Equal content yields equal ids.
func ContentID(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// FileContentID returns the ContentID of the file at path.
func FileContentID(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ContentID(f)
}
