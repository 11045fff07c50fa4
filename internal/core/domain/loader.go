package domain

import (
	"strings"
	"time"
)

// LoaderKind is the closed set of distribution families a remote version can belong to.
type LoaderKind int

// Loader families.
const (
	LoaderGame LoaderKind = iota
	LoaderForge
	LoaderNeoForge
	LoaderFabric
	LoaderQuilt
	LoaderLiteLoader
	LoaderOptiFine
)

var loaderNames = [...]string{
	LoaderGame:       "game",
	LoaderForge:      "forge",
	LoaderNeoForge:   "neoforge",
	LoaderFabric:     "fabric",
	LoaderQuilt:      "quilt",
	LoaderLiteLoader: "liteloader",
	LoaderOptiFine:   "optifine",
}

// LoaderKinds lists every kind in declaration order.
func LoaderKinds() []LoaderKind {
	return []LoaderKind{
		LoaderGame, LoaderForge, LoaderNeoForge, LoaderFabric, LoaderQuilt, LoaderLiteLoader, LoaderOptiFine,
	}
}

func (k LoaderKind) String() string {
	if int(k) < 0 || int(k) >= len(loaderNames) {
		return "unknown"
	}
	return loaderNames[k]
}

// ParseLoaderKind maps a patch id or family name to its kind.
func ParseLoaderKind(s string) (LoaderKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range loaderNames {
		if name == s {
			return LoaderKind(i), true
		}
	}
	return 0, false
}

// LibraryCoordinate is the group and artifact that mark the loader's presence in a library list.
func (k LoaderKind) LibraryCoordinate() (group, artifact string) {
	switch k {
	case LoaderGame:
		return "com.mojang", "minecraft"
	case LoaderForge:
		return "net.minecraftforge", "forge"
	case LoaderNeoForge:
		return "net.neoforged", "neoforge"
	case LoaderFabric:
		return "net.fabricmc", "fabric-loader"
	case LoaderQuilt:
		return "org.quiltmc", "quilt-loader"
	case LoaderLiteLoader:
		return "com.mumfrey", "liteloader"
	case LoaderOptiFine:
		return "optifine", "OptiFine"
	}
	return "", ""
}

// Coordinates that are not loader families but steer tweak-class handling.
const (
	ModLauncherGroup    = "cpw.mods"
	ModLauncherArtifact = "modlauncher"
	LaunchWrapperMarker = "launchwrapper"
)

// ReleaseType classifies a remote version.
type ReleaseType string

// Release types as published by the catalogue.
const (
	ReleaseTypeRelease       ReleaseType = "release"
	ReleaseTypeSnapshot      ReleaseType = "snapshot"
	ReleaseTypeOld           ReleaseType = "old"
	ReleaseTypeUncategorized ReleaseType = "uncategorized"
)

// ParseReleaseType folds catalogue type strings into the four release types.
func ParseReleaseType(s string) ReleaseType {
	switch strings.ToLower(s) {
	case "release":
		return ReleaseTypeRelease
	case "snapshot":
		return ReleaseTypeSnapshot
	case "old_alpha", "old_beta", "old":
		return ReleaseTypeOld
	}
	return ReleaseTypeUncategorized
}

// RemoteVersion is one installable entry of a remote catalogue.
type RemoteVersion struct {
	Kind        LoaderKind
	GameVersion string
	SelfVersion string
	// ID is the catalogue id; for the game family it equals GameVersion.
	ID          string
	URLs        []string
	Type        ReleaseType
	ReleaseTime time.Time
}

// CompareNewestFirst orders by release time descending, then by self version descending.
func CompareNewestFirst(a, b RemoteVersion) int {
	switch {
	case a.ReleaseTime.After(b.ReleaseTime):
		return -1
	case a.ReleaseTime.Before(b.ReleaseTime):
		return 1
	}
	return -CompareVersions(a.SelfVersion, b.SelfVersion)
}
