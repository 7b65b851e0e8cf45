// Package integrity computes and verifies file digests for uploaded and
// downloaded deposition files.
package integrity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/rcsb/depfile/pkg/errtypes"
)

// HashType names a supported digest algorithm.
type HashType string

const (
	MD5    HashType = "MD5"
	SHA1   HashType = "SHA1"
	SHA256 HashType = "SHA256"
)

func newHash(t HashType) (hash.Hash, error) {
	switch t {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, errtypes.NotSupported("unsupported hash type " + string(t))
	}
}

// Digest returns the hex-encoded digest of path using the given hash type.
func Digest(path string, t HashType) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return DigestReader(f, t)
}

// DigestReader returns the hex-encoded digest of r's contents.
func DigestReader(r io.Reader, t HashType) (string, error) {
	h, err := newHash(t)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check verifies that path's digest matches expected, returning an
// errtypes.HashError on mismatch.
func Check(path string, t HashType, expected string) error {
	actual, err := Digest(path, t)
	if err != nil {
		return err
	}
	if actual != expected {
		return errtypes.HashError("digest mismatch for " + path + ": expected " + expected + ", got " + actual)
	}
	return nil
}
