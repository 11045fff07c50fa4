package planner

import (
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/task"
	"go.trai.ch/zerr"
)

func (b *Builder) gameJar(v domain.VersionDescriptor, m mode, t *tally) *task.Task[string] {
	return task.NewStep[string]("jar "+v.JarID(), func(ctx *task.Context) (task.Step, error) {
		path := b.layout.VersionJar(v.JarID())
		info, declared := v.MainDownload()
		check := sha1Check(info.SHA1)

		ok, err := b.localFileOK(path, check, nil, m.verify)
		if err != nil {
			return task.Step{}, err
		}
		if ok {
			t.cached.Add(1)
			b.register(check, path, t)
			return task.Done(path), nil
		}

		if !declared || info.URL == "" {
			return task.Step{}, zerr.With(zerr.Wrap(domain.ErrArtifactMalformed, "version declares no client download"),
				"version", v.ID)
		}
		if err := ctx.Checkpoint(); err != nil {
			return task.Step{}, err
		}

		dl := b.download(download.Request{
			URLs:      []string{info.URL},
			Dest:      path,
			Check:     check,
			Cacheable: true,
			Validate:  archiveValidator(path),
		}, task.Major, t)
		return task.Continue([]task.Node{dl}, func(*task.Context) (task.Step, error) {
			return task.Done(path), nil
		}), nil
	}).WithStage(StageJar)
}
