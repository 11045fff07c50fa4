package resolver

import (
	"go.trai.ch/depot/internal/core/domain"
)

// ModLauncherMainClass is the bootstrap main class of mod-launcher based loaders.
const ModLauncherMainClass = "cpw.mods.modlauncher.Launcher"

// legacyCoordinates lists artifacts older loader releases used for the same family.
var legacyCoordinates = map[domain.LoaderKind][][2]string{
	domain.LoaderForge: {{"net.minecraftforge", "minecraftforge"}, {"net.minecraftforge", "fmlloader"}},
}

// Analysis lists which loader families a descriptor's libraries contain.
type Analysis struct {
	loaders     map[domain.LoaderKind]domain.Library
	modLauncher bool
	game        bool
}

// Analyze scans the libraries of v.
func Analyze(v domain.VersionDescriptor) Analysis {
	a := Analysis{
		loaders: make(map[domain.LoaderKind]domain.Library),
		game:    v.HasPatch(GamePatchID),
	}
	if _, ok := v.MainDownload(); ok {
		a.game = true
	}

	for _, lib := range v.Libraries {
		if lib.Is(domain.ModLauncherGroup, domain.ModLauncherArtifact) {
			a.modLauncher = true
		}
		for _, kind := range domain.LoaderKinds() {
			if _, seen := a.loaders[kind]; seen {
				continue
			}
			if matches(kind, lib) {
				a.loaders[kind] = lib
			}
		}
	}
	return a
}

func matches(kind domain.LoaderKind, lib domain.Library) bool {
	group, artifact := kind.LibraryCoordinate()
	if lib.Is(group, artifact) {
		return true
	}
	for _, c := range legacyCoordinates[kind] {
		if lib.Is(c[0], c[1]) {
			return true
		}
	}
	return false
}

// Has reports whether the family is present.
func (a Analysis) Has(kind domain.LoaderKind) bool {
	if kind == domain.LoaderGame && a.game {
		return true
	}
	_, ok := a.loaders[kind]
	return ok
}

// Version returns the version of the family's library.
func (a Analysis) Version(kind domain.LoaderKind) (string, bool) {
	lib, ok := a.loaders[kind]
	if !ok {
		return "", false
	}
	return lib.Version(), true
}

// HasModLauncher reports whether the mod launcher library is present.
func (a Analysis) HasModLauncher() bool { return a.modLauncher }

// Loaders returns the detected families in declaration order.
func (a Analysis) Loaders() []domain.LoaderKind {
	var out []domain.LoaderKind
	for _, kind := range domain.LoaderKinds() {
		if a.Has(kind) {
			out = append(out, kind)
		}
	}
	return out
}
