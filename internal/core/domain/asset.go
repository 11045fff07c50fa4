package domain

import (
	"maps"
	"slices"
)

// AssetObject is one entry of an asset index.
type AssetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Location is the two-level path fragment hash[:2]/hash.
func (o AssetObject) Location() string {
	return o.Hash[:2] + "/" + o.Hash
}

// AssetIndex maps virtual paths to content-addressed objects.
type AssetIndex struct {
	Objects        map[string]AssetObject `json:"objects"`
	Virtual        bool                   `json:"virtual,omitempty"`
	MapToResources bool                   `json:"map_to_resources,omitempty"`
}

// DistinctObjects returns the unique objects of the index in a deterministic order.
func (idx AssetIndex) DistinctObjects() []AssetObject {
	seen := make(map[string]bool, len(idx.Objects))
	out := make([]AssetObject, 0, len(idx.Objects))
	for _, key := range slices.Sorted(maps.Keys(idx.Objects)) {
		obj := idx.Objects[key]
		if seen[obj.Hash] {
			continue
		}
		seen[obj.Hash] = true
		out = append(out, obj)
	}
	return out
}
