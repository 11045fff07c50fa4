package planner

import (
	"encoding/json"
	"os"
	"strings"

	"go.trai.ch/depot/internal/core/domain"
	"go.trai.ch/depot/internal/engine/download"
	"go.trai.ch/depot/internal/engine/task"
)

func (b *Builder) assets(v domain.VersionDescriptor, m mode, t *tally) *task.Task[int] {
	return b.assetObjects(b.assetIndex(v, m, t), m, t)
}

func (b *Builder) assetIndex(v domain.VersionDescriptor, m mode, t *tally) *task.Task[domain.AssetIndex] {
	id := v.AssetIndexID()
	return task.NewStep[domain.AssetIndex]("asset index "+id, func(ctx *task.Context) (task.Step, error) {
		path := b.layout.AssetIndexFile(id)
		info := v.AssetIndex
		var check *domain.IntegrityCheck
		if info != nil {
			check = sha1Check(info.SHA1)
		}

		remote := info != nil && info.URL != ""
		if !m.refreshIndex || !remote {
			if idx, ok := b.localIndex(path, check, m.verify); ok {
				t.cached.Add(1)
				b.register(check, path, t)
				return task.Done(idx), nil
			}
		}
		if !remote {
			return task.Done(domain.AssetIndex{}), nil
		}
		if err := ctx.Checkpoint(); err != nil {
			return task.Step{}, err
		}

		dl := b.download(download.Request{
			URLs:      []string{info.URL},
			Dest:      path,
			Check:     check,
			Cacheable: true,
			Validate: func(p string) error {
				_, err := ParseAssetIndex(p)
				return err
			},
		}, task.Major, t)
		return task.Continue([]task.Node{dl}, func(*task.Context) (task.Step, error) {
			idx, err := ParseAssetIndex(path)
			if err != nil {
				return task.Step{}, err
			}
			return task.Done(idx), nil
		}), nil
	}).WithStage(StageIndex)
}

// localIndex returns the index at path when it exists, verifies and parses.
func (b *Builder) localIndex(path string, check *domain.IntegrityCheck, verify bool) (domain.AssetIndex, bool) {
	ok, err := b.localFileOK(path, check, nil, verify)
	if err != nil || !ok {
		return domain.AssetIndex{}, false
	}
	idx, err := ParseAssetIndex(path)
	if err != nil {
		b.warn(err)
		return domain.AssetIndex{}, false
	}
	return idx, true
}

// ParseAssetIndex reads and validates an asset index document.
func ParseAssetIndex(path string) (domain.AssetIndex, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the repository root
	if err != nil {
		return domain.AssetIndex{}, &domain.ArtifactMalformedError{Path: path, Cause: err}
	}
	var idx domain.AssetIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return domain.AssetIndex{}, &domain.ArtifactMalformedError{Path: path, Cause: err}
	}
	if err := domain.ValidateAssetIndex(idx); err != nil {
		return domain.AssetIndex{}, &domain.ArtifactMalformedError{Path: path, Cause: err}
	}
	return idx, nil
}

func (b *Builder) assetObjects(index *task.Task[domain.AssetIndex], m mode, t *tally) *task.Task[int] {
	return task.NewStep[int]("assets", func(ctx *task.Context) (task.Step, error) {
		idx, err := index.Result()
		if err != nil {
			return task.Step{}, err
		}
		objects := idx.DistinctObjects()
		ok := make([]bool, len(objects))

		if err := b.inspect(ctx, len(objects), func(i int) error {
			check := domain.SHA1Check(objects[i].Hash)
			present, err := b.localFileOK(b.layout.AssetObjectFile(objects[i]), check, nil, m.verify)
			ok[i] = present
			return err
		}); err != nil {
			return task.Step{}, err
		}

		base := b.assetBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		var downloads []task.Node
		for i, obj := range objects {
			path := b.layout.AssetObjectFile(obj)
			check := domain.SHA1Check(obj.Hash)
			if ok[i] {
				t.cached.Add(1)
				b.register(check, path, t)
				continue
			}
			downloads = append(downloads, b.download(download.Request{
				URLs:      []string{base + obj.Location()},
				Dest:      path,
				Check:     check,
				Cacheable: true,
			}, task.Moderate, t))
		}

		count := len(downloads)
		return task.Continue(downloads, func(*task.Context) (task.Step, error) {
			return task.Done(count), nil
		}), nil
	}).WithStage(StageAssets).DependsOn(index)
}
