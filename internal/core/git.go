package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"quarry-packages/internal/shared"
	"quarry-packages/internal/types"
)

// defaultRevision is what an unpinned git declaration resolves to.
const defaultRevision = "HEAD"

// GitUnpinned accumulates the revisions declared for one repository.
type GitUnpinned struct {
	url          string
	revisions    []string
	warnUnpinned bool
}

func newGitUnpinned(decl types.PackageDecl) GitUnpinned {
	warn := true
	if decl.WarnUnpinned != nil {
		warn = *decl.WarnUnpinned
	}
	var revisions []string
	if strings.TrimSpace(decl.Revision) != "" {
		revisions = []string{strings.TrimSpace(decl.Revision)}
	}
	return GitUnpinned{
		url:          strings.TrimSpace(decl.Git),
		revisions:    revisions,
		warnUnpinned: warn,
	}
}

// Identity ignores a trailing .git so both spellings of one repository
// group together.
func (u GitUnpinned) Identity() string {
	return strings.TrimSuffix(u.url, ".git")
}

func (u GitUnpinned) SourceKind() types.SourceKind { return types.SourceKindGit }

// Incorporate concatenates revision lists; an explicit
// warn-unpinned: false on either side silences the warning for the
// merged package.
func (u GitUnpinned) Incorporate(other UnpinnedPackage) (UnpinnedPackage, error) {
	if other.SourceKind() != types.SourceKindGit {
		return nil, sourceKindConflict(u.Identity(), types.SourceKindGit, other.SourceKind())
	}
	otherGit, ok := other.(GitUnpinned)
	if !ok {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("unexpected git package type %T", other))
	}
	revisions := make([]string, 0, len(u.revisions)+len(otherGit.revisions))
	revisions = append(revisions, u.revisions...)
	revisions = append(revisions, otherGit.revisions...)
	return GitUnpinned{
		url:          u.url,
		revisions:    revisions,
		warnUnpinned: u.warnUnpinned && otherGit.warnUnpinned,
	}, nil
}

func (u GitUnpinned) Resolved(_ context.Context, _ Runtime) (PinnedPackage, error) {
	distinct := uniqueStrings(u.revisions)
	if len(distinct) > 1 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("git package %s declares conflicting revisions %s", u.url, strings.Join(distinct, ", ")))
	}
	revision := defaultRevision
	if len(distinct) == 1 {
		revision = distinct[0]
	}
	return &GitPinned{
		url:          u.url,
		revision:     revision,
		warnUnpinned: u.warnUnpinned,
	}, nil
}

// GitPinned is one repository at one revision. The checkout in the
// downloads area doubles as a cache shared by metadata reads and the
// install step.
type GitPinned struct {
	url          string
	revision     string
	warnUnpinned bool

	checkoutDir string
	meta        *types.ProjectMetadata
	warned      bool
}

func (p *GitPinned) Identity() string {
	return strings.TrimSuffix(p.url, ".git")
}

func (p *GitPinned) SourceKind() types.SourceKind { return types.SourceKindGit }

func (p *GitPinned) Pin() string { return p.revision }

func (p *GitPinned) checkout(ctx context.Context, rt Runtime) (string, error) {
	if p.checkoutDir != "" {
		return p.checkoutDir, nil
	}
	if p.warnUnpinned && p.revision == defaultRevision && !p.warned {
		p.warned = true
		log.Ctx(ctx).Warn().
			Str("repo", p.url).
			Msg("git package is not pinned, using HEAD; declare a revision or set warn-unpinned: false")
	}
	downloads, err := rt.ensureDownloadsDir()
	if err != nil {
		return "", err
	}
	dir, err := rt.Git.CloneCheckout(ctx, p.url, p.revision, downloads)
	if err != nil {
		return "", err
	}
	p.checkoutDir = dir
	return dir, nil
}

func (p *GitPinned) FetchMetadata(ctx context.Context, rt Runtime) (types.ProjectMetadata, error) {
	if p.meta != nil {
		return *p.meta, nil
	}
	dir, err := p.checkout(ctx, rt)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	meta, err := loadProjectMetadata(rt, dir)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	p.meta = &meta
	return meta, nil
}

func (p *GitPinned) ProjectName(ctx context.Context, rt Runtime) (string, error) {
	meta, err := p.FetchMetadata(ctx, rt)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (p *GitPinned) Install(ctx context.Context, rt Runtime) error {
	dir, err := p.checkout(ctx, rt)
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
	if err := shared.CopyDir(dir, dest); err != nil {
		return installFailed(name, err)
	}
	// The checkout keeps its .git directory as a cache; the installed
	// copy must not.
	if err := os.RemoveAll(filepath.Join(dest, ".git")); err != nil {
		return installFailed(name, err)
	}
	log.Ctx(ctx).Info().
		Str("package", name).
		Str("revision", p.revision).
		Msg("installed git package")
	return nil
}

func (p *GitPinned) Cleanup() error { return nil }

// uniqueStrings keeps the first occurrence of each value.
func uniqueStrings(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

var _ UnpinnedPackage = GitUnpinned{}
var _ PinnedPackage = (*GitPinned)(nil)
