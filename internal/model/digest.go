package model

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
)

// FetchDigest computes the hex SHA-256 of the weight file's raw bytes,
// streaming so large artifacts are not held in memory. A missing file yields
// an empty digest and no error: absence is a valid "never persisted" state,
// not a failure.
func FetchDigest(weightPath string) (string, error) {
	f, err := os.Open(weightPath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to open weight file %s", weightPath)
	}
	defer func() { _ = f.Close() }()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", errors.Wrapf(err, "failed to hash weight file %s", weightPath)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
