package domain

import (
	"path"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/zerr"
)

// sha1HexLen is the length of a hex encoded SHA-1 digest.
const sha1HexLen = 40

func invalid(field, reason string) error {
	return zerr.With(zerr.Wrap(ErrInvalidField, reason), "field", field)
}

// ValidateAssetObject checks an object decoded from an asset index.
func ValidateAssetObject(o AssetObject) error {
	if len(o.Hash) != sha1HexLen || !isLowerHex(o.Hash) {
		return invalid("hash", "asset hash must be a lowercase hex SHA-1 digest")
	}
	return nil
}

// ValidateDigest checks that key names a supported algorithm and carries a lowercase hex digest
// of the right length. Keys are joined into cache paths, so anything else is rejected.
func ValidateDigest(key digest.Digest) error {
	alg, enc := key.Algorithm(), key.Encoded()
	want := sha1HexLen
	if alg != SHA1 {
		if !alg.Available() {
			return zerr.With(zerr.Wrap(ErrUnsupportedAlgorithm, "cannot check digest"), "algorithm", string(alg))
		}
		want = alg.Size() * 2
	}
	if len(enc) != want || !isLowerHex(enc) {
		return invalid("digest", "digest must be lowercase hex of the algorithm's length")
	}
	return nil
}

// ValidateRelativePath checks a slash separated path taken from a document before it is joined
// below a repository directory.
func ValidateRelativePath(field, p string) error {
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") || strings.Contains(p, ":") {
		return invalid(field, "path must be relative")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return invalid(field, "path must stay below its directory")
		}
	}
	if path.Clean(p) == "." {
		return invalid(field, "path must name a file")
	}
	return nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ValidateAssetIndex checks every object of a decoded index.
func ValidateAssetIndex(idx AssetIndex) error {
	for name, obj := range idx.Objects {
		if err := ValidateAssetObject(obj); err != nil {
			return zerr.With(err, "object", name)
		}
	}
	return nil
}

// ValidateLibrary checks a decoded library entry.
func ValidateLibrary(l Library) error {
	if _, err := ParseArtifact(l.Name); err != nil {
		return err
	}
	if l.Downloads == nil {
		return nil
	}
	if a := l.Downloads.Artifact; a != nil {
		if err := ValidateRelativePath("downloads.artifact.path", a.Path); err != nil {
			return err
		}
	}
	for name, c := range l.Downloads.Classifiers {
		if err := ValidateRelativePath("downloads.classifiers.path", c.Path); err != nil {
			return zerr.With(err, "classifier", name)
		}
	}
	return nil
}

// ValidateVersion checks a decoded version descriptor.
func ValidateVersion(v VersionDescriptor) error {
	if strings.TrimSpace(v.ID) == "" {
		return invalid("id", "version id must not be blank")
	}
	if strings.ContainsAny(v.ID, "/\\") || v.ID == "." || v.ID == ".." {
		return invalid("id", "version id must not contain path separators")
	}
	if v.InheritsFrom == v.ID {
		return invalid("inheritsFrom", "version cannot inherit from itself")
	}
	for i, lib := range v.Libraries {
		if err := ValidateLibrary(lib); err != nil {
			return zerr.With(err, "library", i)
		}
	}
	if v.AssetIndex != nil && strings.TrimSpace(v.AssetIndex.ID) == "" {
		return invalid("assetIndex.id", "asset index id must not be blank")
	}
	return nil
}

// ValidateRemoteVersion checks a catalogue entry.
func ValidateRemoteVersion(r RemoteVersion) error {
	if strings.TrimSpace(r.ID) == "" {
		return invalid("id", "remote version id must not be blank")
	}
	if len(r.URLs) == 0 {
		return invalid("url", "remote version must carry a url")
	}
	return nil
}
