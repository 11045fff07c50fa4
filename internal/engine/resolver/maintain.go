package resolver

import (
	"slices"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/zerr"
)

// Tweak classes installed by maintenance.
const (
	LiteLoaderTweaker      = "com.mumfrey.liteloader.launch.LiteLoaderTweaker"
	OptiFineTweaker        = "optifine.OptiFineTweaker"
	OptiFineForgeTweaker   = "optifine.OptiFineForgeTweaker"
	optiFineInstallerClass = "installer"
)

// LibraryFiles reports whether a library is present in the local repository.
type LibraryFiles interface {
	HasLibrary(lib domain.Library) bool
}

// Maintain normalizes an independent descriptor: libraries are merged, launch-wrapper tweak
// classes are reconciled with the loaders present and the OptiFine installer jar replaces the
// patch jar when it exists locally. Files may be nil, which skips the jar swap.
func Maintain(v domain.VersionDescriptor, files LibraryFiles) (domain.VersionDescriptor, error) {
	if v.InheritsFrom != "" {
		return domain.VersionDescriptor{}, zerr.With(
			zerr.Wrap(domain.ErrNotIndependent, "cannot maintain"), "inheritsFrom", v.InheritsFrom)
	}

	out := Unique(v)
	if strings.Contains(v.MainClass, domain.LaunchWrapperMarker) {
		out = maintainLaunchWrapper(out)
	}
	return maintainOptiFineLibrary(out, files), nil
}

// MaintainPreservingPatches maintains a descriptor produced by ResolvePreservingPatches and
// returns it with its patches, flagged unresolved so it can be saved.
func MaintainPreservingPatches(v domain.VersionDescriptor, files LibraryFiles) (domain.VersionDescriptor, error) {
	if !v.IsResolvedPreservingPatches() {
		return domain.VersionDescriptor{}, zerr.With(
			zerr.Wrap(domain.ErrNotPreservingPatches, "cannot maintain"), "id", v.ID)
	}
	out, err := Maintain(v, files)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	return out.WithPatches(v.Patches).MarkUnresolved(), nil
}

// IsPurePatched reports whether the game itself is one of the patches.
func IsPurePatched(v domain.VersionDescriptor) (bool, error) {
	if !v.IsResolvedPreservingPatches() {
		return false, zerr.With(zerr.Wrap(domain.ErrNotPreservingPatches, "cannot inspect"), "id", v.ID)
	}
	return v.HasPatch(GamePatchID), nil
}

func maintainLaunchWrapper(v domain.VersionDescriptor) domain.VersionDescriptor {
	a := Analyze(v)
	b := NewArgumentsBuilder(v)
	mainClass := ""

	if !a.Has(domain.LoaderForge) {
		b.RemoveTweakClass("forge")
	}

	if a.Has(domain.LoaderLiteLoader) && !a.HasModLauncher() {
		_ = b.ReplaceTweakClass("liteloader", LiteLoaderTweaker, true)
	} else {
		b.RemoveTweakClass("liteloader")
	}

	switch {
	case !a.Has(domain.LoaderOptiFine):
		b.RemoveTweakClass("optifine")
	case !a.Has(domain.LoaderLiteLoader) && !a.Has(domain.LoaderForge):
		_ = b.ReplaceTweakClass("optifine", OptiFineTweaker, true)
	default:
		if a.HasModLauncher() {
			mainClass = ModLauncherMainClass
		}
		_ = b.ReplaceTweakClass("optifine", OptiFineForgeTweaker, true)
	}

	out := b.Build()
	if mainClass != "" {
		out = out.WithMainClass(mainClass)
	}
	return out
}

// maintainOptiFineLibrary moves OptiFine after Forge or LiteLoader on the classpath by replacing
// the patch jar with the installer jar.
func maintainOptiFineLibrary(v domain.VersionDescriptor, files LibraryFiles) domain.VersionDescriptor {
	if files == nil {
		return v
	}
	a := Analyze(v)
	if !a.Has(domain.LoaderOptiFine) || (!a.Has(domain.LoaderLiteLoader) && !a.Has(domain.LoaderForge)) {
		return v
	}

	group, artifact := domain.LoaderOptiFine.LibraryCoordinate()
	libs := slices.Clone(v.Libraries)
	var moved []domain.Library
	for i := 0; i < len(libs); i++ {
		lib := libs[i]
		if !lib.Is(group, artifact) {
			continue
		}
		installer := domain.NewLibrary(domain.Artifact{
			Group:      group,
			Name:       artifact,
			Version:    lib.Version(),
			Classifier: optiFineInstallerClass,
			Extension:  "jar",
		})
		if !files.HasLibrary(installer) {
			continue
		}
		libs = slices.Delete(libs, i, i+1)
		i--
		moved = append(moved, installer)
	}
	if len(moved) == 0 {
		return v
	}
	return v.WithLibraries(append(libs, moved...))
}
