// Package resolver flattens version inheritance chains and normalizes library lists.
// Every function is pure: inputs are never modified and results are fresh values.
package resolver

import (
	"errors"
	"maps"
	"slices"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/zerr"
)

// GamePatchID is the patch id the root of a chain is recorded under when patches are preserved.
const GamePatchID = "game"

// Resolve looks up id and flattens its inheritance chain.
func Resolve(id string, lookup ports.VersionLookup) (domain.VersionDescriptor, error) {
	leaf, err := lookup.Lookup(id)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	return ResolveDescriptor(leaf, lookup)
}

// ResolveDescriptor flattens the chain starting at leaf. The child overrides and the parent fills
// the gaps; the result has no parent.
func ResolveDescriptor(leaf domain.VersionDescriptor, lookup ports.VersionLookup) (domain.VersionDescriptor, error) {
	layers, err := chain(leaf, lookup)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}

	out := layers[len(layers)-1]
	for i := len(layers) - 2; i >= 0; i-- {
		out = mergeLayer(out, layers[i])
	}
	return out.WithInheritsFrom("").MarkResolved(false), nil
}

// ResolvePreservingPatches flattens the chain like ResolveDescriptor but also records every layer
// as a patch. The root layer becomes the "game" patch; each descendant keeps its own id.
func ResolvePreservingPatches(
	leaf domain.VersionDescriptor,
	lookup ports.VersionLookup,
) (domain.VersionDescriptor, error) {
	layers, err := chain(leaf, lookup)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}

	root := layers[len(layers)-1]
	patches := slices.Clone(root.Patches)
	if len(layers) > 1 && len(root.Patches) == 0 {
		patches = append(patches, asPatch(root, GamePatchID, root.ID))
	}

	out := root
	for i := len(layers) - 2; i >= 0; i-- {
		layer := layers[i]
		out = mergeLayer(out, layer)
		patches = append(patches, asPatch(layer, layer.ID, layer.Version))
	}
	return out.WithInheritsFrom("").WithPatches(patches).MarkResolved(true), nil
}

// chain returns the descriptors from leaf up to the root, leaf first.
func chain(leaf domain.VersionDescriptor, lookup ports.VersionLookup) ([]domain.VersionDescriptor, error) {
	layers := []domain.VersionDescriptor{leaf}
	visited := map[string]bool{leaf.ID: true}
	ids := []string{leaf.ID}

	cur := leaf
	for cur.InheritsFrom != "" {
		parentID := cur.InheritsFrom
		ids = append(ids, parentID)
		if visited[parentID] {
			return nil, &domain.ResolutionError{Chain: ids, Reason: domain.ErrCycleDetected}
		}
		visited[parentID] = true

		parent, err := lookup.Lookup(parentID)
		if err != nil {
			reason := err
			if errors.Is(err, domain.ErrVersionNotFound) {
				reason = zerr.With(zerr.Wrap(domain.ErrMissingParent, parentID), "child", cur.ID)
			}
			return nil, &domain.ResolutionError{Chain: ids, Reason: reason}
		}
		layers = append(layers, parent)
		cur = parent
	}
	return layers, nil
}

func asPatch(layer domain.VersionDescriptor, id, version string) domain.VersionDescriptor {
	p := layer.WithID(id).WithInheritsFrom("").WithPatches(nil).MarkUnresolved()
	p.Version = version
	return p
}

// mergeLayer overlays child onto parent.
func mergeLayer(parent, child domain.VersionDescriptor) domain.VersionDescriptor {
	out := child
	out.InheritsFrom = ""

	if child.Jar == "" {
		out.Jar = parent.JarID()
	}
	if child.MainClass == "" {
		out.MainClass = parent.MainClass
	}
	if child.MinecraftArguments == "" {
		out.MinecraftArguments = parent.MinecraftArguments
	}
	out = out.WithArguments(domain.MergeArguments(parent.Arguments, child.Arguments))
	out = out.WithLibraries(append(slices.Clone(child.Libraries), parent.Libraries...))

	if child.AssetIndex == nil {
		out.AssetIndex = parent.AssetIndex
	}
	if child.Assets == "" {
		out.Assets = parent.Assets
	}
	if len(parent.Downloads) > 0 {
		downloads := maps.Clone(parent.Downloads)
		maps.Copy(downloads, child.Downloads)
		out.Downloads = downloads
	}
	if child.Type == "" {
		out.Type = parent.Type
	}
	if child.Time == "" {
		out.Time = parent.Time
	}
	if child.ReleaseTime == "" {
		out.ReleaseTime = parent.ReleaseTime
	}
	out.MinimumLauncherVersion = max(parent.MinimumLauncherVersion, child.MinimumLauncherVersion)
	if len(parent.Patches) > 0 {
		out = out.WithPatches(append(slices.Clone(parent.Patches), child.Patches...))
	}
	return out
}
