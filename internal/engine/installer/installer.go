// Package installer maps loader families to the tasks that install their version documents.
package installer

import (
	"context"
	"fmt"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/core/ports"
	"go.trai.ch/depot/internal/engine/task"
	"go.trai.ch/zerr"
)

// StageName labels installer tasks for progress observers.
const StageName = "version"

// Profile endpoints of loaders publishing a ready-made version document.
const (
	FabricProfileURL = "https://meta.fabricmc.net/v2/versions/loader/%s/%s/profile/json"
	QuiltProfileURL  = "https://meta.quiltmc.org/v3/versions/loader/%s/%s/profile/json"
)

// Fetcher downloads small documents. *download.Manager satisfies it.
type Fetcher interface {
	FetchBytes(ctx context.Context, urls ...string) ([]byte, error)
}

// Installer builds the task that fetches and saves the version document of a remote version.
type Installer interface {
	Task(rv domain.RemoteVersion) *task.Task[domain.VersionDescriptor]
}

// Table maps each supported loader family to its installer.
type Table map[domain.LoaderKind]Installer

// NewTable returns the installers for the game and for loaders publishing profiles.
func NewTable(fetcher Fetcher, repo ports.Repository) Table {
	return Table{
		domain.LoaderGame:   &gameInstaller{fetcher: fetcher, repo: repo},
		domain.LoaderFabric: &profileInstaller{kind: domain.LoaderFabric, fetcher: fetcher, repo: repo},
		domain.LoaderQuilt:  &profileInstaller{kind: domain.LoaderQuilt, fetcher: fetcher, repo: repo},
	}
}

// Task returns the install task of rv.
func (t Table) Task(rv domain.RemoteVersion) (*task.Task[domain.VersionDescriptor], error) {
	inst, ok := t[rv.Kind]
	if !ok {
		return nil, zerr.With(zerr.Wrap(domain.ErrUnsupportedLoader, "no installer"), "loader", rv.Kind.String())
	}
	return inst.Task(rv), nil
}

// Supports reports whether kind has an installer.
func (t Table) Supports(kind domain.LoaderKind) bool {
	_, ok := t[kind]
	return ok
}

// LoaderVersion builds the remote version of a loader release for a game version.
func LoaderVersion(kind domain.LoaderKind, gameVersion, selfVersion string) (domain.RemoteVersion, error) {
	var template string
	switch kind {
	case domain.LoaderFabric:
		template = FabricProfileURL
	case domain.LoaderQuilt:
		template = QuiltProfileURL
	default:
		return domain.RemoteVersion{}, zerr.With(
			zerr.Wrap(domain.ErrUnsupportedLoader, "no profile endpoint"), "loader", kind.String())
	}

	rv := domain.RemoteVersion{
		Kind:        kind,
		GameVersion: gameVersion,
		SelfVersion: selfVersion,
		ID:          fmt.Sprintf("%s-%s-%s", gameVersion, kind, selfVersion),
		URLs:        []string{fmt.Sprintf(template, gameVersion, selfVersion)},
		Type:        domain.ReleaseTypeUncategorized,
	}
	return rv, domain.ValidateRemoteVersion(rv)
}

// ParseLoaderSpec parses kind:version as given on the command line.
func ParseLoaderSpec(spec string) (domain.LoaderKind, string, error) {
	name, version, ok := strings.Cut(spec, ":")
	kind, known := domain.ParseLoaderKind(name)
	if !ok || !known || version == "" {
		return 0, "", zerr.With(zerr.Wrap(domain.ErrUnsupportedLoader, "expected kind:version"), "loader", spec)
	}
	return kind, version, nil
}

type gameInstaller struct {
	fetcher Fetcher
	repo    ports.Repository
}

func (g *gameInstaller) Task(rv domain.RemoteVersion) *task.Task[domain.VersionDescriptor] {
	return task.New("version "+rv.ID, func(ctx *task.Context) (domain.VersionDescriptor, error) {
		v, err := fetchDescriptor(ctx, g.fetcher, rv)
		if err != nil {
			return domain.VersionDescriptor{}, err
		}
		if v.ID != rv.ID {
			v = v.WithID(rv.ID)
		}
		return v, g.repo.Save(v)
	}).WithStage(StageName)
}

type profileInstaller struct {
	kind    domain.LoaderKind
	fetcher Fetcher
	repo    ports.Repository
}

func (p *profileInstaller) Task(rv domain.RemoteVersion) *task.Task[domain.VersionDescriptor] {
	return task.New(p.kind.String()+" "+rv.SelfVersion, func(ctx *task.Context) (domain.VersionDescriptor, error) {
		v, err := fetchDescriptor(ctx, p.fetcher, rv)
		if err != nil {
			return domain.VersionDescriptor{}, err
		}
		if v.ID != rv.ID {
			v = v.WithID(rv.ID)
		}
		if v.InheritsFrom == "" {
			v = v.WithInheritsFrom(rv.GameVersion)
		}
		if !p.repo.Has(v.InheritsFrom) {
			return domain.VersionDescriptor{}, &domain.ResolutionError{
				Chain:  []string{v.ID, v.InheritsFrom},
				Reason: zerr.Wrap(domain.ErrMissingParent, v.InheritsFrom),
			}
		}
		return v, p.repo.Save(v)
	}).WithStage(StageName)
}

func fetchDescriptor(ctx *task.Context, fetcher Fetcher, rv domain.RemoteVersion) (domain.VersionDescriptor, error) {
	if err := ctx.Checkpoint(); err != nil {
		return domain.VersionDescriptor{}, err
	}
	data, err := fetcher.FetchBytes(ctx, rv.URLs...)
	if err != nil {
		return domain.VersionDescriptor{}, err
	}
	return domain.ParseVersion(rv.URLs[0], data)
}
