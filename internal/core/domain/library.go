package domain

import (
	"maps"
	"path"
	"strconv"
	"strings"

	"go.trai.ch/zerr"
)

// DownloadInfo locates a downloadable file and its SHA-1.
type DownloadInfo struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url,omitempty"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// LibraryDownloads lists the main artifact and classifier artifacts of a library.
type LibraryDownloads struct {
	Artifact    *DownloadInfo           `json:"artifact,omitempty"`
	Classifiers map[string]DownloadInfo `json:"classifiers,omitempty"`
}

// ExtractRules lists path prefixes skipped when unpacking natives.
type ExtractRules struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Artifact is a parsed maven coordinate.
type Artifact struct {
	Group      string
	Name       string
	Version    string
	Classifier string
	Extension  string
}

// ParseArtifact parses group:artifact:version[:classifier][@extension].
func ParseArtifact(coordinate string) (Artifact, error) {
	a := Artifact{Extension: "jar"}
	if at := strings.LastIndexByte(coordinate, '@'); at >= 0 {
		a.Extension = coordinate[at+1:]
		coordinate = coordinate[:at]
	}
	parts := strings.Split(coordinate, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return Artifact{}, zerr.With(ErrInvalidCoordinate, "coordinate", coordinate)
	}
	a.Group, a.Name, a.Version = parts[0], parts[1], parts[2]
	if len(parts) == 4 {
		a.Classifier = parts[3]
	}
	if a.Group == "" || a.Name == "" {
		return Artifact{}, zerr.With(ErrInvalidCoordinate, "coordinate", coordinate)
	}
	return a, nil
}

// WithClassifier returns a copy with a different classifier.
func (a Artifact) WithClassifier(classifier string) Artifact {
	a.Classifier = classifier
	return a
}

// Path is the maven repository layout path, always slash separated.
func (a Artifact) Path() string {
	file := a.Name + "-" + a.Version
	if a.Classifier != "" {
		file += "-" + a.Classifier
	}
	file += "." + a.Extension
	return path.Join(strings.ReplaceAll(a.Group, ".", "/"), a.Name, a.Version, file)
}

func (a Artifact) String() string {
	s := a.Group + ":" + a.Name + ":" + a.Version
	if a.Classifier != "" {
		s += ":" + a.Classifier
	}
	if a.Extension != "" && a.Extension != "jar" {
		s += "@" + a.Extension
	}
	return s
}

// Library is one classpath entry of a version descriptor.
type Library struct {
	Name      string              `json:"name"`
	URL       string              `json:"url,omitempty"`
	Downloads *LibraryDownloads   `json:"downloads,omitempty"`
	Extract   *ExtractRules       `json:"extract,omitempty"`
	Natives   map[string]string   `json:"natives,omitempty"`
	Rules     []CompatibilityRule `json:"rules,omitempty"`
	Checksums []string            `json:"checksums,omitempty"`
}

// NewLibrary builds a library entry from a coordinate.
func NewLibrary(a Artifact) Library {
	return Library{Name: a.String()}
}

// Artifact parses Name. Malformed names yield an artifact holding the raw name.
func (l Library) Artifact() Artifact {
	a, err := ParseArtifact(l.Name)
	if err != nil {
		return Artifact{Name: l.Name, Extension: "jar"}
	}
	return a
}

// GroupID returns the maven group.
func (l Library) GroupID() string { return l.Artifact().Group }

// ArtifactID returns the maven artifact name.
func (l Library) ArtifactID() string { return l.Artifact().Name }

// Version returns the maven version.
func (l Library) Version() string { return l.Artifact().Version }

// Classifier returns the maven classifier, if any.
func (l Library) Classifier() string { return l.Artifact().Classifier }

// Key is the group:artifact pair libraries are deduplicated by.
func (l Library) Key() string {
	a := l.Artifact()
	return a.Group + ":" + a.Name
}

// Is reports whether the library has the given group and artifact.
func (l Library) Is(group, artifact string) bool {
	a := l.Artifact()
	return a.Group == group && a.Name == artifact
}

// IsNative reports whether the library carries platform native archives.
func (l Library) IsNative() bool { return len(l.Natives) > 0 }

// AppliesTo evaluates the library's rules on p.
func (l Library) AppliesTo(p Platform) bool {
	if !RulesAllow(l.Rules, p) {
		return false
	}
	if l.IsNative() {
		_, ok := l.Natives[p.OS]
		return ok
	}
	return true
}

// NativeClassifier returns the classifier of the native archive for p, with ${arch} expanded.
func (l Library) NativeClassifier(p Platform) string {
	c, ok := l.Natives[p.OS]
	if !ok {
		return ""
	}
	return strings.ReplaceAll(c, "${arch}", strconv.Itoa(p.Bits))
}

// Path is the location of the jar for p below libraries/.
func (l Library) Path(p Platform) string { return l.Download(p).Path }

// Download resolves the download info for p. The path is always filled.
func (l Library) Download(p Platform) DownloadInfo {
	a := l.Artifact()
	var info DownloadInfo

	if classifier := l.NativeClassifier(p); classifier != "" {
		a = a.WithClassifier(classifier)
		if l.Downloads != nil {
			info = l.Downloads.Classifiers[classifier]
		}
	} else if l.Downloads != nil && l.Downloads.Artifact != nil {
		info = *l.Downloads.Artifact
	}

	if info.Path == "" {
		info.Path = a.Path()
	}
	if info.URL == "" {
		base := l.URL
		if base == "" {
			base = DefaultLibraryBaseURL
		}
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		info.URL = base + info.Path
	}
	return info
}

// Equal compares the coordinate and natives. Rules, downloads and checksums are ignored.
func (l Library) Equal(o Library) bool {
	return l.Name == o.Name && maps.Equal(l.Natives, o.Natives)
}
