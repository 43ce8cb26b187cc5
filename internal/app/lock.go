package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"quarry-packages/internal/core"
)

// Lock resolves the project's declarations and writes the lock file
// without installing anything.
func (s Service) Lock(ctx context.Context, req LockRequest) (LockResult, error) {
	paths, err := resolveProjectPaths(req.ProjectDir, "", req.DownloadsDir)
	if err != nil {
		return LockResult{}, err
	}
	project, err := s.Projects.LoadProject(paths.projectDir)
	if err != nil {
		return LockResult{}, err
	}
	decls, err := s.rootDeclarations(paths.projectDir, req.PackagesFile)
	if err != nil {
		return LockResult{}, err
	}
	decls = optInPrerelease(decls, req.AllowPrerelease)

	rt := s.runtime(ctx, paths, req.HubURL)
	pins, err := core.ResolvePackages(ctx, rt, decls)
	if err != nil {
		return LockResult{}, err
	}
	defer cleanupPins(ctx, pins)

	rows, err := packageRows(ctx, rt, pins)
	if err != nil {
		return LockResult{}, err
	}
	if err := s.Locks.WriteLock(paths.lockPath, lockFromRows(rows)); err != nil {
		return LockResult{}, err
	}
	log.Ctx(ctx).Debug().
		Str("project", project.Name).
		Int("packages", len(rows)).
		Str("lock", paths.lockPath).
		Msg("lock written")
	return LockResult{
		Project:  project.Name,
		Packages: rows,
		LockPath: paths.lockPath,
	}, nil
}
