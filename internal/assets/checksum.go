package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrChecksumMismatch is returned when a model file does not have the
// expected SHA-256 digest.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Checksum returns the hex SHA-256 digest of the file at path.
func Checksum(path string) (string, error) {
	//nolint:gosec // G304: path is a model file in the configured assets directory.
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return checksumReader(f)
}

func checksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// validateChecksum compares a computed digest against an expected one. An
// empty expectation always passes.
func validateChecksum(name, computed, expected string) error {
	if expected == "" || strings.EqualFold(computed, expected) {
		return nil
	}
	return fmt.Errorf("%w: %s has sha256 %s, expected %s", ErrChecksumMismatch, name, computed, expected)
}
