package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"quarry-packages/internal/shared"
	"quarry-packages/internal/types"
)

// LocalUnpinned is a dependency on a package directory already on
// disk, usually a sibling project inside the same repository.
type LocalUnpinned struct {
	path string
}

func newLocalUnpinned(decl types.PackageDecl) LocalUnpinned {
	return LocalUnpinned{path: filepath.Clean(decl.Local)}
}

func (u LocalUnpinned) Identity() string { return u.path }

func (u LocalUnpinned) SourceKind() types.SourceKind { return types.SourceKindLocal }

// Incorporate keeps the newest declaration; local packages carry no
// constraints to combine.
func (u LocalUnpinned) Incorporate(other UnpinnedPackage) (UnpinnedPackage, error) {
	if other.SourceKind() != types.SourceKindLocal {
		return nil, sourceKindConflict(u.path, types.SourceKindLocal, other.SourceKind())
	}
	return other, nil
}

func (u LocalUnpinned) Resolved(_ context.Context, _ Runtime) (PinnedPackage, error) {
	return &LocalPinned{path: u.path}, nil
}

// LocalPinned installs by symlinking to the source directory, falling
// back to a deep copy where symlinks are unavailable.
type LocalPinned struct {
	path string
	meta *types.ProjectMetadata
}

func (p *LocalPinned) Identity() string { return p.path }

func (p *LocalPinned) SourceKind() types.SourceKind { return types.SourceKindLocal }

func (p *LocalPinned) Pin() string { return p.path }

// resolvePath anchors relative declarations at the project root.
func (p *LocalPinned) resolvePath(rt Runtime) string {
	if filepath.IsAbs(p.path) {
		return p.path
	}
	return filepath.Join(rt.ProjectRoot, p.path)
}

func (p *LocalPinned) FetchMetadata(_ context.Context, rt Runtime) (types.ProjectMetadata, error) {
	if p.meta != nil {
		return *p.meta, nil
	}
	meta, err := loadProjectMetadata(rt, p.resolvePath(rt))
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	p.meta = &meta
	return meta, nil
}

func (p *LocalPinned) ProjectName(ctx context.Context, rt Runtime) (string, error) {
	meta, err := p.FetchMetadata(ctx, rt)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (p *LocalPinned) Install(ctx context.Context, rt Runtime) error {
	name, err := p.ProjectName(ctx, rt)
	if err != nil {
		return err
	}
	dest, err := prepareInstallDest(rt, name)
	if err != nil {
		return err
	}
	src, err := filepath.Abs(p.resolvePath(rt))
	if err != nil {
		return installFailed(name, err)
	}
	if err := os.Symlink(src, dest); err == nil {
		log.Ctx(ctx).Debug().
			Str("package", name).
			Str("path", src).
			Msg("created symlink to local package")
		return nil
	}
	log.Ctx(ctx).Debug().
		Str("package", name).
		Str("path", src).
		Msg("copying local package")
	if err := shared.CopyDir(src, dest); err != nil {
		return installFailed(name, err)
	}
	return nil
}

func (p *LocalPinned) Cleanup() error { return nil }

var _ UnpinnedPackage = LocalUnpinned{}
var _ PinnedPackage = (*LocalPinned)(nil)
