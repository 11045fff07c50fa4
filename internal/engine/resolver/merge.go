package resolver

import (
	"encoding/json"
	"slices"

	"go.trai.ch/depot/internal/core/domain"
)

// Merge removes duplicate libraries. Libraries sharing group:artifact and equal rules are
// duplicates: the newer version wins, and on equal versions the entry whose JSON form is longer
// wins. Entries with equal versions that are not Equal (different classifiers or natives) are
// both kept. First-seen order is preserved and Merge(Merge(l)) equals Merge(l).
func Merge(libs []domain.Library) []domain.Library {
	out := make([]domain.Library, 0, len(libs))

	for _, lib := range libs {
		var (
			older     []int
			duplicate bool
		)
		for idx, other := range out {
			if other.Key() != lib.Key() || !domain.RulesEqual(lib.Rules, other.Rules) {
				continue
			}

			cmp := domain.CompareVersions(lib.Version(), other.Version())
			switch {
			case cmp > 0:
				older = append(older, idx)
			case cmp < 0:
				duplicate = true
			case lib.Equal(other):
				if serializedLen(lib) > serializedLen(other) {
					out[idx] = lib
				}
				duplicate = true
			}
			if duplicate {
				break
			}
		}

		switch {
		case duplicate:
		case len(older) > 0:
			// Rule-equal entries of one coordinate always share a version, so a newer library
			// supersedes all of them at the position of the first.
			out[older[0]] = lib
			for i := len(older) - 1; i > 0; i-- {
				out = slices.Delete(out, older[i], older[i]+1)
			}
		default:
			out = append(out, lib)
		}
	}
	return out
}

func serializedLen(l domain.Library) int {
	data, err := json.Marshal(l)
	if err != nil {
		return 0
	}
	return len(data)
}

// Unique returns v with its libraries merged.
func Unique(v domain.VersionDescriptor) domain.VersionDescriptor {
	return v.WithLibraries(Merge(v.Libraries))
}
