package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"quarry-packages/internal/types"
)

// packageListing groups unpinned packages by identity, preserving
// first-seen order for deterministic output and diagnostics.
type packageListing struct {
	order  []string
	groups map[string]UnpinnedPackage
	pins   map[string]PinnedPackage
}

func newPackageListing() *packageListing {
	return &packageListing{
		groups: make(map[string]UnpinnedPackage),
		pins:   make(map[string]PinnedPackage),
	}
}

// incorporate merges a declaration into its identity group. Merging
// drops any cached pin so the eventual pin reflects the full set.
func (l *packageListing) incorporate(pkg UnpinnedPackage) error {
	key := pkg.Identity()
	existing, ok := l.groups[key]
	if !ok {
		l.order = append(l.order, key)
		l.groups[key] = pkg
		return nil
	}
	merged, err := existing.Incorporate(pkg)
	if err != nil {
		return err
	}
	l.groups[key] = merged
	if pin, ok := l.pins[key]; ok {
		delete(l.pins, key)
		if err := pin.Cleanup(); err != nil {
			return err
		}
	}
	return nil
}

// resolve pins one identity group, reusing the cached pin when the
// group has not changed since it was last pinned.
func (l *packageListing) resolve(ctx context.Context, rt Runtime, key string) (PinnedPackage, error) {
	if pin, ok := l.pins[key]; ok {
		return pin, nil
	}
	group, ok := l.groups[key]
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("no package group for identity %s", key))
	}
	pin, err := group.Resolved(ctx, rt)
	if err != nil {
		return nil, err
	}
	l.pins[key] = pin
	return pin, nil
}

// resolved pins every group in first-declaration order.
func (l *packageListing) resolved(ctx context.Context, rt Runtime) ([]PinnedPackage, error) {
	pins := make([]PinnedPackage, 0, len(l.order))
	for _, key := range l.order {
		pin, err := l.resolve(ctx, rt, key)
		if err != nil {
			return nil, err
		}
		pins = append(pins, pin)
	}
	return pins, nil
}

// discardPins releases every staged pin. Used on failed resolutions
// so a half-finished run leaves no temp state behind.
func (l *packageListing) discardPins(ctx context.Context) {
	for key, pin := range l.pins {
		if err := pin.Cleanup(); err != nil {
			log.Ctx(ctx).Warn().
				Err(err).
				Str("package", key).
				Msg("failed to clean up staged package")
		}
	}
	l.pins = make(map[string]PinnedPackage)
}

// ResolvePackages turns an ordered declaration list into one pinned
// package per identity. Each round resolves the declarations found so
// far and fetches their metadata; dependency declarations discovered
// there feed the next round, until nothing undiscovered remains.
// Output preserves first-declaration order.
func ResolvePackages(ctx context.Context, rt Runtime, decls []types.PackageDecl) (pins []PinnedPackage, err error) {
	listing := newPackageListing()
	defer func() {
		if err != nil {
			listing.discardPins(ctx)
		}
	}()

	seen := make(map[string]struct{}, len(decls))
	for _, decl := range decls {
		seen[declFingerprint(decl)] = struct{}{}
	}

	pending := decls
	for round := 0; len(pending) > 0; round++ {
		log.Ctx(ctx).Debug().
			Int("round", round).
			Int("pending", len(pending)).
			Msg("resolving package declarations")
		var discovered []types.PackageDecl
		for _, decl := range pending {
			unpinned, err := FromDeclaration(decl)
			if err != nil {
				return nil, err
			}
			if err := listing.incorporate(unpinned); err != nil {
				return nil, err
			}
			pin, err := listing.resolve(ctx, rt, unpinned.Identity())
			if err != nil {
				return nil, err
			}
			meta, err := pin.FetchMetadata(ctx, rt)
			if err != nil {
				return nil, err
			}
			for _, dep := range meta.Packages {
				fingerprint := declFingerprint(dep)
				if _, ok := seen[fingerprint]; ok {
					continue
				}
				seen[fingerprint] = struct{}{}
				discovered = append(discovered, dep)
			}
		}
		pending = discovered
	}

	pins, err = listing.resolved(ctx, rt)
	if err != nil {
		return nil, err
	}
	if err := checkProjectNames(ctx, rt, pins); err != nil {
		return nil, err
	}
	return pins, nil
}

// checkProjectNames rejects resolutions where two packages, or a
// package and the root project, claim the same project name. Installs
// are keyed by project name, so a clash would silently overwrite.
func checkProjectNames(ctx context.Context, rt Runtime, pins []PinnedPackage) error {
	rootName := ""
	if rt.ProjectRoot != "" {
		project, err := rt.Projects.LoadProject(rt.ProjectRoot)
		if err != nil {
			return err
		}
		rootName = project.Name
	}
	claimed := make(map[string]string, len(pins))
	for _, pin := range pins {
		name, err := pin.ProjectName(ctx, rt)
		if err != nil {
			return err
		}
		if rootName != "" && name == rootName {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("package %s resolves to project name %s, which is the root project's own name", pin.Identity(), name))
		}
		if prev, ok := claimed[name]; ok {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("packages %s and %s both resolve to project name %s", prev, pin.Identity(), name))
		}
		claimed[name] = pin.Identity()
	}
	return nil
}

// declFingerprint canonicalizes a declaration so rediscovering an
// identical one through package metadata does not start a new round.
// Dependency cycles terminate because each fetched version's metadata
// is static and can only yield a finite declaration set.
func declFingerprint(decl types.PackageDecl) string {
	parts := []string{
		decl.Package,
		strings.Join(decl.Version, ","),
		boolFingerprint(decl.InstallPrerelease),
		decl.Git,
		decl.Revision,
		boolFingerprint(decl.WarnUnpinned),
		decl.Local,
		decl.Tarball,
		decl.Name,
		decl.SHA1,
		decl.Subdirectory,
	}
	return strings.Join(parts, "|")
}

func boolFingerprint(value *bool) string {
	if value == nil {
		return ""
	}
	return strconv.FormatBool(*value)
}
