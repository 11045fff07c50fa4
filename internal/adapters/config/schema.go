package config

// Depotfile represents the structure of the depot.yaml configuration file.
type Depotfile struct {
	Root           string      `yaml:"root"`
	Cache          string      `yaml:"cache"`
	Parallelism    int         `yaml:"parallelism"`
	IntegrityCheck *bool       `yaml:"integrityCheck"`
	Timeouts       TimeoutsDTO `yaml:"timeouts"`
	SpeedInterval  string      `yaml:"speedInterval"`
	VersionList    string      `yaml:"versionList"`
	AssetBase      string      `yaml:"assetBase"`
	Mirrors        []MirrorDTO `yaml:"mirrors"`
	Platform       PlatformDTO `yaml:"platform"`
	Logging        LoggingDTO  `yaml:"logging"`
}

// TimeoutsDTO holds network timeouts as Go duration strings.
type TimeoutsDTO struct {
	Connect string `yaml:"connect"`
	Attempt string `yaml:"attempt"`
}

// MirrorDTO represents one mirror definition.
type MirrorDTO struct {
	Name    string            `yaml:"name"`
	Rewrite map[string]string `yaml:"rewrite"`
}

// PlatformDTO overrides the detected platform.
type PlatformDTO struct {
	OS       string          `yaml:"os"`
	Arch     string          `yaml:"arch"`
	Features map[string]bool `yaml:"features"`
}

// LoggingDTO configures log output.
type LoggingDTO struct {
	JSON bool `yaml:"json"`
}
