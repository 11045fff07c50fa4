package domain

import (
	"encoding/json"
	"slices"
)

// AssetIndexInfo references the asset index of a version.
type AssetIndexInfo struct {
	ID        string `json:"id"`
	URL       string `json:"url,omitempty"`
	SHA1      string `json:"sha1,omitempty"`
	Size      int64  `json:"size,omitempty"`
	TotalSize int64  `json:"totalSize,omitempty"`
}

// VersionDescriptor is one installable build: main class, arguments, libraries, assets, parent link.
// Values are never mutated in place; every With method returns a modified copy.
type VersionDescriptor struct {
	ID                     string                  `json:"id"`
	InheritsFrom           string                  `json:"inheritsFrom,omitempty"`
	Jar                    string                  `json:"jar,omitempty"`
	MainClass              string                  `json:"mainClass,omitempty"`
	MinecraftArguments     string                  `json:"minecraftArguments,omitempty"`
	Arguments              *Arguments              `json:"arguments,omitempty"`
	Libraries              []Library               `json:"libraries,omitempty"`
	AssetIndex             *AssetIndexInfo         `json:"assetIndex,omitempty"`
	Assets                 string                  `json:"assets,omitempty"`
	Downloads              map[string]DownloadInfo `json:"downloads,omitempty"`
	Type                   string                  `json:"type,omitempty"`
	Time                   string                  `json:"time,omitempty"`
	ReleaseTime            string                  `json:"releaseTime,omitempty"`
	MinimumLauncherVersion int                     `json:"minimumLauncherVersion,omitempty"`
	// Version and Priority are only meaningful on patches.
	Version  string              `json:"version,omitempty"`
	Priority *int                `json:"priority,omitempty"`
	Patches  []VersionDescriptor `json:"patches,omitempty"`

	resolved          bool
	preservingPatches bool
}

// ClientDownloadKey is the downloads entry holding the main artifact.
const ClientDownloadKey = "client"

// IsResolved reports whether the descriptor was produced by a resolver.
func (v VersionDescriptor) IsResolved() bool { return v.resolved }

// IsResolvedPreservingPatches reports whether the descriptor keeps its layers as patches.
func (v VersionDescriptor) IsResolvedPreservingPatches() bool { return v.preservingPatches }

// MainDownload returns the main artifact download info, if declared.
func (v VersionDescriptor) MainDownload() (DownloadInfo, bool) {
	d, ok := v.Downloads[ClientDownloadKey]
	return d, ok
}

// JarID returns the id of the version whose jar is used.
func (v VersionDescriptor) JarID() string {
	if v.Jar != "" {
		return v.Jar
	}
	return v.ID
}

// AssetIndexID returns the asset index id, falling back to the legacy field and then "legacy".
func (v VersionDescriptor) AssetIndexID() string {
	if v.AssetIndex != nil && v.AssetIndex.ID != "" {
		return v.AssetIndex.ID
	}
	if v.Assets != "" {
		return v.Assets
	}
	return "legacy"
}

// HasPatch reports whether a patch with the given id is present.
func (v VersionDescriptor) HasPatch(id string) bool {
	return slices.ContainsFunc(v.Patches, func(p VersionDescriptor) bool { return p.ID == id })
}

// WithLibraries returns a copy with the given libraries.
func (v VersionDescriptor) WithLibraries(libs []Library) VersionDescriptor {
	v.Libraries = slices.Clone(libs)
	return v
}

// WithMainClass returns a copy with the given main class.
func (v VersionDescriptor) WithMainClass(mainClass string) VersionDescriptor {
	v.MainClass = mainClass
	return v
}

// WithMinecraftArguments returns a copy with the given legacy argument string.
func (v VersionDescriptor) WithMinecraftArguments(args string) VersionDescriptor {
	v.MinecraftArguments = args
	return v
}

// WithArguments returns a copy with the given structured arguments.
func (v VersionDescriptor) WithArguments(args *Arguments) VersionDescriptor {
	if args != nil {
		cp := Arguments{Game: slices.Clone(args.Game), JVM: slices.Clone(args.JVM)}
		args = &cp
	}
	v.Arguments = args
	return v
}

// WithPatches returns a copy with the given patch list.
func (v VersionDescriptor) WithPatches(patches []VersionDescriptor) VersionDescriptor {
	v.Patches = slices.Clone(patches)
	return v
}

// WithInheritsFrom returns a copy with a different parent id.
func (v VersionDescriptor) WithInheritsFrom(parent string) VersionDescriptor {
	v.InheritsFrom = parent
	return v
}

// WithID returns a copy with a different id.
func (v VersionDescriptor) WithID(id string) VersionDescriptor {
	v.ID = id
	return v
}

// MarkResolved returns a copy flagged as resolved.
func (v VersionDescriptor) MarkResolved(preservingPatches bool) VersionDescriptor {
	v.resolved = true
	v.preservingPatches = preservingPatches
	return v
}

// MarkUnresolved returns a copy with the resolution flags cleared.
func (v VersionDescriptor) MarkUnresolved() VersionDescriptor {
	v.resolved = false
	v.preservingPatches = false
	return v
}

// ParseVersion decodes and validates a version document. Source names the document in errors.
func ParseVersion(source string, data []byte) (VersionDescriptor, error) {
	var v VersionDescriptor
	if err := json.Unmarshal(data, &v); err != nil {
		return VersionDescriptor{}, &ArtifactMalformedError{Path: source, Cause: err}
	}
	if err := ValidateVersion(v); err != nil {
		return VersionDescriptor{}, &ArtifactMalformedError{Path: source, Cause: err}
	}
	return v, nil
}

// ParseLibraries decodes and validates a JSON list of libraries.
func ParseLibraries(source string, data []byte) ([]Library, error) {
	var libs []Library
	if err := json.Unmarshal(data, &libs); err != nil {
		return nil, &ArtifactMalformedError{Path: source, Cause: err}
	}
	for _, l := range libs {
		if err := ValidateLibrary(l); err != nil {
			return nil, &ArtifactMalformedError{Path: source, Cause: err}
		}
	}
	return libs, nil
}
