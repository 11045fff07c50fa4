package domain

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is the digest the distribution publishes.
	_ "crypto/sha256"
	_ "crypto/sha512"
	"hash"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

// SHA1 is the algorithm used by every digest in version and asset documents.
const SHA1 digest.Algorithm = "sha1"

// IntegrityCheck is an expected (algorithm, digest) pair.
type IntegrityCheck struct {
	Algorithm digest.Algorithm
	Digest    string
}

// SHA1Check returns a SHA-1 integrity check, or nil when the hash is empty.
func SHA1Check(hexDigest string) *IntegrityCheck {
	if hexDigest == "" {
		return nil
	}
	return &IntegrityCheck{Algorithm: SHA1, Digest: strings.ToLower(hexDigest)}
}

// Key is the content-addressed cache key of the check.
func (c IntegrityCheck) Key() digest.Digest {
	return digest.NewDigestFromEncoded(c.Algorithm, strings.ToLower(c.Digest))
}

// NewHash returns a fresh hash for the check's algorithm.
func (c IntegrityCheck) NewHash() (hash.Hash, error) {
	return NewHash(c.Algorithm)
}

// NewHash returns a fresh hash for alg.
func NewHash(alg digest.Algorithm) (hash.Hash, error) {
	if alg == SHA1 {
		return sha1.New(), nil //nolint:gosec // see import
	}
	if alg.Available() {
		return alg.Hash(), nil
	}
	return nil, zerr.With(zerr.Wrap(ErrUnsupportedAlgorithm, "cannot hash"), "algorithm", string(alg))
}
