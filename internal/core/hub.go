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

// HubUnpinned accumulates version constraints for one hub package id.
type HubUnpinned struct {
	name              string
	constraints       ConstraintSet
	installPrerelease bool
}

func newHubUnpinned(decl types.PackageDecl) (HubUnpinned, error) {
	constraints, err := ParseConstraints(decl.Version)
	if err != nil {
		return HubUnpinned{}, err
	}
	return HubUnpinned{
		name:              strings.TrimSpace(decl.Package),
		constraints:       constraints,
		installPrerelease: decl.InstallPrerelease != nil && *decl.InstallPrerelease,
	}, nil
}

func (u HubUnpinned) Identity() string { return u.name }

func (u HubUnpinned) SourceKind() types.SourceKind { return types.SourceKindHub }

// Incorporate concatenates constraints in declaration order; the
// prerelease opt-in is monotonic, any true wins.
func (u HubUnpinned) Incorporate(other UnpinnedPackage) (UnpinnedPackage, error) {
	if other.SourceKind() != types.SourceKindHub {
		return nil, sourceKindConflict(u.name, types.SourceKindHub, other.SourceKind())
	}
	otherHub, ok := other.(HubUnpinned)
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("unexpected hub package type %T", other))
	}
	return HubUnpinned{
		name:              u.name,
		constraints:       u.constraints.Merge(otherHub.constraints),
		installPrerelease: u.installPrerelease || otherHub.installPrerelease,
	}, nil
}

func (u HubUnpinned) Resolved(ctx context.Context, rt Runtime) (PinnedPackage, error) {
	names, err := rt.Registry.ListPackageNames(ctx)
	if err != nil {
		return nil, err
	}
	if !containsString(names, u.name) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package %s was not found in the package index", u.name))
	}
	available, err := rt.Registry.AvailableVersions(ctx, u.name)
	if err != nil {
		return nil, err
	}
	version, err := u.constraints.Resolve(u.name, available, u.installPrerelease)
	if err != nil {
		return nil, err
	}
	latest, err := u.constraints.Latest(u.name, available, u.installPrerelease)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().
		Str("package", u.name).
		Str("version", version).
		Str("latest", latest).
		Msg("resolved hub package")
	return &HubPinned{name: u.name, version: version, versionLatest: latest}, nil
}

// HubPinned is one hub package at one registry version.
type HubPinned struct {
	name          string
	version       string
	versionLatest string

	release *types.HubRelease
	fetch   *archiveFetch
}

func (p *HubPinned) Identity() string { return p.name }

func (p *HubPinned) SourceKind() types.SourceKind { return types.SourceKindHub }

func (p *HubPinned) Pin() string { return p.version }

// Latest reports the newest installable version, shown next to the pin
// so users notice available upgrades.
func (p *HubPinned) Latest() string { return p.versionLatest }

func (p *HubPinned) fetchRelease(ctx context.Context, rt Runtime) (types.HubRelease, error) {
	if p.release != nil {
		return *p.release, nil
	}
	release, err := rt.Registry.PackageVersion(ctx, p.name, p.version)
	if err != nil {
		return types.HubRelease{}, err
	}
	p.release = &release
	return release, nil
}

func (p *HubPinned) FetchMetadata(ctx context.Context, rt Runtime) (types.ProjectMetadata, error) {
	release, err := p.fetchRelease(ctx, rt)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	name := strings.TrimSpace(release.Name)
	if name == "" {
		name = shortHubName(p.name)
	}
	return types.ProjectMetadata{
		Name:     name,
		Version:  release.Version,
		Packages: release.Packages,
	}, nil
}

func (p *HubPinned) ProjectName(ctx context.Context, rt Runtime) (string, error) {
	meta, err := p.FetchMetadata(ctx, rt)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (p *HubPinned) Install(ctx context.Context, rt Runtime) error {
	release, err := p.fetchRelease(ctx, rt)
	if err != nil {
		return err
	}
	if strings.TrimSpace(release.Downloads.TarballURL) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("hub release %s %s has no tarball url", p.name, p.version))
	}
	if p.fetch == nil {
		p.fetch = &archiveFetch{
			ref:       release.Downloads.TarballURL,
			sizeLimit: hubSizeLimit,
		}
	}
	stagedRoot, err := p.fetch.run(ctx, rt)
	if err != nil {
		return err
	}
	name, err := p.ProjectName(ctx, rt)
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
		Str("version", p.version).
		Msg("installed hub package")
	return nil
}

func (p *HubPinned) Cleanup() error {
	if p.fetch == nil {
		return nil
	}
	return p.fetch.cleanup()
}

// shortHubName strips the hub namespace from a package id.
func shortHubName(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

var _ UnpinnedPackage = HubUnpinned{}
var _ PinnedPackage = (*HubPinned)(nil)
