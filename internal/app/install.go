package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"quarry-packages/internal/core"
)

// Install resolves the project's declarations, installs every pinned
// package in declaration order and writes the lock file.
func (s Service) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	paths, err := resolveProjectPaths(req.ProjectDir, req.InstallDir, req.DownloadsDir)
	if err != nil {
		return InstallResult{}, err
	}
	project, err := s.Projects.LoadProject(paths.projectDir)
	if err != nil {
		return InstallResult{}, err
	}
	decls, err := s.rootDeclarations(paths.projectDir, req.PackagesFile)
	if err != nil {
		return InstallResult{}, err
	}
	decls = optInPrerelease(decls, req.AllowPrerelease)

	rt := s.runtime(ctx, paths, req.HubURL)
	pins, err := core.ResolvePackages(ctx, rt, decls)
	if err != nil {
		return InstallResult{}, err
	}
	defer cleanupPins(ctx, pins)

	rows := make([]PackageRow, 0, len(pins))
	for _, pin := range pins {
		name, err := pin.ProjectName(ctx, rt)
		if err != nil {
			return InstallResult{}, err
		}
		if err := pin.Install(ctx, rt); err != nil {
			return InstallResult{}, err
		}
		row := PackageRow{Name: name, Kind: pin.SourceKind(), Pin: pin.Pin()}
		if hub, ok := pin.(*core.HubPinned); ok {
			row.Latest = hub.Latest()
		}
		rows = append(rows, row)
	}

	if err := s.Locks.WriteLock(paths.lockPath, lockFromRows(rows)); err != nil {
		return InstallResult{}, err
	}
	log.Ctx(ctx).Debug().
		Str("project", project.Name).
		Int("packages", len(rows)).
		Str("lock", paths.lockPath).
		Msg("install finished")
	return InstallResult{
		Project:    project.Name,
		Packages:   rows,
		InstallDir: paths.installDir,
		LockPath:   paths.lockPath,
	}, nil
}
