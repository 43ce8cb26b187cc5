package app

import (
	"context"
	"path/filepath"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"quarry-packages/internal/adapters"
	"quarry-packages/internal/core"
	"quarry-packages/internal/ports"
	"quarry-packages/internal/types"
)

const installDirName = "quarry_packages"
const downloadsDirName = ".quarry-downloads"
const lockFileName = "package-lock.yml"

// Service carries the ports the dependency operations run against. The
// registry client depends on the per-request hub url, so it is built
// through a factory instead of being held directly.
type Service struct {
	Transport   ports.TransportPort
	Git         ports.GitPort
	Projects    ports.ProjectLoaderPort
	Locks       ports.LockPort
	NewRegistry func(hubURL string) ports.RegistryPort
}

func NewService() Service {
	return Service{
		Transport: adapters.NewHTTPTransportAdapter(0),
		Git:       adapters.NewGitCLIAdapter(),
		Projects:  adapters.NewProjectFileAdapter(),
		Locks:     adapters.NewLockFileAdapter(),
		NewRegistry: func(hubURL string) ports.RegistryPort {
			return adapters.NewHubRegistryAdapter(hubURL, 0, 0, 0)
		},
	}
}

// projectPaths are the resolved locations one operation works with.
type projectPaths struct {
	projectDir   string
	installDir   string
	downloadsDir string
	lockPath     string
}

func resolveProjectPaths(projectDir string, installDir string, downloadsDir string) (projectPaths, error) {
	dir := strings.TrimSpace(projectDir)
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return projectPaths{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to resolve project directory").
			WithCause(err)
	}
	install := strings.TrimSpace(installDir)
	if install == "" {
		install = filepath.Join(abs, installDirName)
	}
	downloads := strings.TrimSpace(downloadsDir)
	if downloads == "" {
		downloads = filepath.Join(abs, downloadsDirName)
	}
	return projectPaths{
		projectDir:   abs,
		installDir:   install,
		downloadsDir: downloads,
		lockPath:     filepath.Join(abs, lockFileName),
	}, nil
}

func (s Service) runtime(ctx context.Context, paths projectPaths, hubURL string) core.Runtime {
	assert.NotEmpty(ctx, paths.projectDir, "project dir must be resolved")
	assert.NotEmpty(ctx, paths.installDir, "install dir must be resolved")
	assert.NotEmpty(ctx, paths.downloadsDir, "downloads dir must be resolved")
	return core.Runtime{
		Registry:     s.NewRegistry(hubURL),
		Transport:    s.Transport,
		Git:          s.Git,
		Projects:     s.Projects,
		ProjectRoot:  paths.projectDir,
		DownloadsDir: paths.downloadsDir,
		InstallRoot:  paths.installDir,
	}
}

// rootDeclarations loads the root project's declarations, honoring an
// explicitly named packages file.
func (s Service) rootDeclarations(projectDir string, packagesFile string) ([]types.PackageDecl, error) {
	if strings.TrimSpace(packagesFile) != "" {
		loader := adapters.ProjectFileAdapter{PackagesPath: strings.TrimSpace(packagesFile)}
		return loader.LoadDeclarations(projectDir)
	}
	return s.Projects.LoadDeclarations(projectDir)
}

// optInPrerelease applies a run-wide prerelease opt-in to hub
// declarations that do not state their own preference. An explicit
// per-package value always wins over the flag.
func optInPrerelease(decls []types.PackageDecl, allow bool) []types.PackageDecl {
	if !allow {
		return decls
	}
	optIn := true
	out := make([]types.PackageDecl, len(decls))
	copy(out, decls)
	for i := range out {
		if out[i].Package != "" && out[i].InstallPrerelease == nil {
			out[i].InstallPrerelease = &optIn
		}
	}
	return out
}

// packageRows reports one row per pin: resolved name, kind and the
// concrete pin, plus the newest installable version for hub packages.
func packageRows(ctx context.Context, rt core.Runtime, pins []core.PinnedPackage) ([]PackageRow, error) {
	rows := make([]PackageRow, 0, len(pins))
	for _, pin := range pins {
		name, err := pin.ProjectName(ctx, rt)
		if err != nil {
			return nil, err
		}
		row := PackageRow{Name: name, Kind: pin.SourceKind(), Pin: pin.Pin()}
		if hub, ok := pin.(*core.HubPinned); ok {
			row.Latest = hub.Latest()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func lockFromRows(rows []PackageRow) types.LockFile {
	entries := make([]types.LockEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, types.LockEntry{Name: row.Name, Source: row.Kind, Pin: row.Pin})
	}
	return types.LockFile{Packages: entries}
}

func cleanupPins(ctx context.Context, pins []core.PinnedPackage) {
	for _, pin := range pins {
		if err := pin.Cleanup(); err != nil {
			log.Ctx(ctx).Warn().
				Err(err).
				Str("package", pin.Identity()).
				Msg("failed to clean up staged package")
		}
	}
}
