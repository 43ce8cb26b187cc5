package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"quarry-packages/internal/shared"
	"quarry-packages/internal/types"
)

// TarballUnpinned is a declaration pointing straight at an archive.
// The archive URL or path is the identity; the declared name decides
// the install directory because the reference itself carries none.
type TarballUnpinned struct {
	ref          string
	name         string
	checksum     string
	subdirectory string
}

func newTarballUnpinned(decl types.PackageDecl) (TarballUnpinned, error) {
	if strings.TrimSpace(decl.Name) == "" {
		return TarballUnpinned{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("tarball package %s must declare a name", decl.Tarball))
	}
	return TarballUnpinned{
		ref:          strings.TrimSpace(decl.Tarball),
		name:         strings.TrimSpace(decl.Name),
		checksum:     strings.TrimSpace(decl.SHA1),
		subdirectory: strings.TrimSpace(decl.Subdirectory),
	}, nil
}

func (u TarballUnpinned) Identity() string { return u.ref }

func (u TarballUnpinned) SourceKind() types.SourceKind { return types.SourceKindTarball }

// Incorporate keeps the first declaration; a tarball entry is atomic
// and repeats of the same reference carry nothing worth merging.
func (u TarballUnpinned) Incorporate(other UnpinnedPackage) (UnpinnedPackage, error) {
	if other.SourceKind() != types.SourceKindTarball {
		return nil, sourceKindConflict(u.ref, types.SourceKindTarball, other.SourceKind())
	}
	return u, nil
}

func (u TarballUnpinned) Resolved(ctx context.Context, rt Runtime) (PinnedPackage, error) {
	log.Ctx(ctx).Debug().
		Str("package", u.name).
		Str("tarball", u.ref).
		Msg("pinned tarball package")
	return &TarballPinned{
		ref:  u.ref,
		name: u.name,
		fetch: &archiveFetch{
			ref:          u.ref,
			checksum:     u.checksum,
			subdirectory: u.subdirectory,
			sizeLimit:    tarballSizeLimit,
		},
	}, nil
}

// TarballPinned stages its archive once; metadata reads and the final
// install both work off the same staged tree.
type TarballPinned struct {
	ref  string
	name string

	fetch *archiveFetch
	meta  *types.ProjectMetadata
}

func (p *TarballPinned) Identity() string { return p.ref }

func (p *TarballPinned) SourceKind() types.SourceKind { return types.SourceKindTarball }

func (p *TarballPinned) Pin() string { return p.ref }

func (p *TarballPinned) FetchMetadata(ctx context.Context, rt Runtime) (types.ProjectMetadata, error) {
	if p.meta != nil {
		return *p.meta, nil
	}
	stagedRoot, err := p.fetch.run(ctx, rt)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	meta, err := loadProjectMetadata(rt, stagedRoot)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	// The declared name wins over the descriptor so that two tarballs
	// of the same upstream project can be installed side by side.
	meta.Name = p.name
	p.meta = &meta
	return meta, nil
}

func (p *TarballPinned) ProjectName(ctx context.Context, rt Runtime) (string, error) {
	meta, err := p.FetchMetadata(ctx, rt)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (p *TarballPinned) Install(ctx context.Context, rt Runtime) error {
	name, err := p.ProjectName(ctx, rt)
	if err != nil {
		return err
	}
	stagedRoot, err := p.fetch.run(ctx, rt)
	if err != nil {
		return err
	}
	dest, err := prepareInstallDest(rt, name)
	if err != nil {
		return err
	}
	if err := shared.RenameWithFallback(stagedRoot, dest); err != nil {
		return installFailed(name, err)
	}
	log.Ctx(ctx).Info().
		Str("package", name).
		Str("tarball", p.ref).
		Msg("installed tarball package")
	return nil
}

func (p *TarballPinned) Cleanup() error {
	return p.fetch.cleanup()
}

var _ UnpinnedPackage = TarballUnpinned{}
var _ PinnedPackage = (*TarballPinned)(nil)
