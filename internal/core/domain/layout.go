package domain

import "path/filepath"

const (
	// VersionsDirName holds one directory per installed version.
	VersionsDirName = "versions"

	// LibrariesDirName holds libraries in maven layout.
	LibrariesDirName = "libraries"

	// AssetsDirName holds asset indexes and objects.
	AssetsDirName = "assets"

	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "depot.yaml"

	// AppDirName is used below the XDG base directories.
	AppDirName = "depot"

	// CacheIndexFileName is the name of the cache index inside the common directory.
	CacheIndexFileName = "index.json"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// Official endpoints of the game distribution.
const (
	DefaultVersionListURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	DefaultAssetBaseURL   = "https://resources.download.minecraft.net/"
	DefaultLibraryBaseURL = "https://libraries.minecraft.net/"
	DefaultConcurrency    = 6
)

// Layout computes paths inside a local repository root.
type Layout struct {
	Root string
}

// VersionDir returns versions/<id>.
func (l Layout) VersionDir(id string) string {
	return filepath.Join(l.Root, VersionsDirName, id)
}

// VersionJSON returns versions/<id>/<id>.json.
func (l Layout) VersionJSON(id string) string {
	return filepath.Join(l.VersionDir(id), id+".json")
}

// VersionJar returns versions/<id>/<id>.jar.
func (l Layout) VersionJar(id string) string {
	return filepath.Join(l.VersionDir(id), id+".jar")
}

// LibraryFile returns libraries/<maven path> for a slash separated path.
func (l Layout) LibraryFile(mavenPath string) string {
	return filepath.Join(l.Root, LibrariesDirName, filepath.FromSlash(mavenPath))
}

// AssetIndexFile returns assets/indexes/<id>.json.
func (l Layout) AssetIndexFile(id string) string {
	return filepath.Join(l.Root, AssetsDirName, "indexes", id+".json")
}

// AssetObjectFile returns assets/objects/<hash[:2]>/<hash>.
func (l Layout) AssetObjectFile(obj AssetObject) string {
	return filepath.Join(l.Root, AssetsDirName, "objects", filepath.FromSlash(obj.Location()))
}
