package planner

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	depotfs "go.trai.ch/depot/internal/adapters/fs"
	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/task"
)

type libraryFile struct {
	lib   domain.Library
	info  domain.DownloadInfo
	path  string
	check *domain.IntegrityCheck
	ok    bool
}

func (b *Builder) libraries(v domain.VersionDescriptor, m mode, t *tally) *task.Task[int] {
	return task.NewStep[int]("libraries "+v.ID, func(ctx *task.Context) (task.Step, error) {
		var files []*libraryFile
		for _, lib := range v.Libraries {
			if !lib.AppliesTo(b.platform) {
				continue
			}
			info := lib.Download(b.platform)
			files = append(files, &libraryFile{
				lib:   lib,
				info:  info,
				path:  b.layout.LibraryFile(info.Path),
				check: sha1Check(info.SHA1),
			})
		}

		if err := b.inspect(ctx, len(files), func(i int) error {
			f := files[i]
			ok, err := b.localFileOK(f.path, f.check, f.lib.Checksums, m.verify)
			f.ok = ok
			return err
		}); err != nil {
			return task.Step{}, err
		}

		var downloads []task.Node
		for _, f := range files {
			if f.ok {
				t.cached.Add(1)
				b.register(f.check, f.path, t)
				continue
			}
			downloads = append(downloads, b.download(download.Request{
				URLs:      []string{f.info.URL},
				Dest:      f.path,
				Check:     f.check,
				Cacheable: true,
				Validate:  libraryValidator(f),
			}, task.Major, t))
		}

		count := len(downloads)
		return task.Continue(downloads, func(*task.Context) (task.Step, error) {
			return task.Done(count), nil
		}), nil
	}).WithStage(StageLibraries)
}

func libraryValidator(f *libraryFile) func(string) error {
	archive := archiveValidator(f.path)
	if len(f.lib.Checksums) == 0 {
		return archive
	}
	return func(path string) error {
		if err := depotfs.VerifyAny(path, f.lib.Checksums); err != nil {
			return err
		}
		if archive != nil {
			return archive(path)
		}
		return nil
	}
}

// inspect runs check for every index with bounded parallelism, reporting progress and stopping
// at the first cancellation or error.
func (b *Builder) inspect(ctx *task.Context, n int, check func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)

	var done atomic.Int64
	for i := range n {
		if err := ctx.Checkpoint(); err != nil {
			_ = g.Wait()
			return err
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := check(i); err != nil {
				return err
			}
			ctx.Progress(done.Add(1), int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Checkpoint()
}
