package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Clean removes the install root and the managed downloads area.
func (s Service) Clean(ctx context.Context, req CleanRequest) (CleanResult, error) {
	paths, err := resolveProjectPaths(req.ProjectDir, req.InstallDir, req.DownloadsDir)
	if err != nil {
		return CleanResult{}, err
	}
	var removed []string
	for _, dir := range []string{paths.installDir, paths.downloadsDir} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return CleanResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to remove %s", dir)).
				WithCause(err)
		}
		removed = append(removed, dir)
	}
	log.Ctx(ctx).Debug().
		Strs("removed", removed).
		Msg("cleaned package directories")
	return CleanResult{Removed: removed}, nil
}
