package build

import (
	"context"
	"time"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/discovery"
	"github.com/conneroisu/plasmo-layout/internal/types"
)

// Clean removes generated artifacts under the include bases and the output
// directory. With dryRun set nothing is deleted and DeletedFiles lists what
// would have been. Files without the generated marker are never touched.
func (b *Builder) Clean(ctx context.Context, dryRun bool) (*types.CleanResult, error) {
	start := time.Now()
	matcher := discovery.NewMatcher(b.cfg)

	roots := matcher.WatchRoots()
	if b.cfg.OutputDirAbsolute != "" {
		roots = append(roots, b.cfg.OutputDirAbsolute)
	}

	found, err := b.store.FindGenerated(ctx, roots, matcher.Excluded)
	if err != nil {
		return nil, err
	}

	result := &types.CleanResult{
		FilesFound:   len(found),
		DeletedFiles: []string{},
	}
	for _, path := range found {
		rel := artifact.RelativePath(path, b.cfg.RootDir)
		if dryRun {
			b.logger.Info(ctx, "Would delete", "path", rel)
			result.DeletedFiles = append(result.DeletedFiles, path)
			continue
		}

		deleted, err := b.store.Delete(ctx, path)
		if err != nil {
			b.logger.Warn(ctx, err, "Failed to delete", "path", rel)
			continue
		}
		if !deleted {
			b.logger.Warn(ctx, nil, "Skipped, not generated", "path", rel)
			continue
		}
		b.logger.Info(ctx, "Deleted", "path", rel)
		result.DeletedFiles = append(result.DeletedFiles, path)
	}

	result.FilesDeleted = len(result.DeletedFiles)
	result.Duration = time.Since(start)
	return result, nil
}
