package domain

import "runtime"

// Operating system names as they appear in rule documents.
const (
	OSWindows = "windows"
	OSMacOS   = "osx"
	OSLinux   = "linux"
	OSUnknown = "unknown"
)

// Platform describes the environment rules are evaluated against.
type Platform struct {
	OS      string
	Arch    string
	Version string
	// Bits is the pointer width used when expanding ${arch} in native classifiers.
	Bits     int
	Features map[string]bool
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return NewPlatform(runtime.GOOS, runtime.GOARCH)
}

// NewPlatform maps Go's GOOS/GOARCH pair onto rule vocabulary.
func NewPlatform(goos, goarch string) Platform {
	p := Platform{OS: OSUnknown, Arch: goarch, Bits: 64}

	switch goos {
	case "windows":
		p.OS = OSWindows
	case "darwin":
		p.OS = OSMacOS
	case "linux":
		p.OS = OSLinux
	}

	switch goarch {
	case "386":
		p.Arch = "x86"
		p.Bits = 32
	case "amd64":
		p.Arch = "x86_64"
	case "arm":
		p.Arch = "arm32"
		p.Bits = 32
	}

	return p
}

// WithFeatures returns a copy of p with the given feature flags.
func (p Platform) WithFeatures(features map[string]bool) Platform {
	cp := make(map[string]bool, len(features))
	for k, v := range features {
		cp[k] = v
	}
	p.Features = cp
	return p
}
