package core

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/types"
)

// Runtime carries the collaborators and directories one resolution run
// needs. It is threaded explicitly through resolve, fetch and install
// calls so every run (and every test) points at its own directories
// instead of sharing process state.
type Runtime struct {
	Registry  ports.RegistryPort
	Transport ports.TransportPort
	Git       ports.GitPort
	Projects  ports.ProjectLoaderPort

	// ProjectRoot anchors relative local paths from packages.yml.
	ProjectRoot string
	// DownloadsDir holds temporary downloads and git checkouts.
	DownloadsDir string
	// InstallRoot receives one directory per installed package.
	InstallRoot string
}

// ensureDownloadsDir creates the downloads directory on first use.
func (r Runtime) ensureDownloadsDir() (string, error) {
	if strings.TrimSpace(r.DownloadsDir) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("downloads directory is not configured")
	}
	if err := os.MkdirAll(r.DownloadsDir, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create downloads directory").
			WithCause(err)
	}
	return r.DownloadsDir, nil
}

// UnpinnedPackage is the raw requirement for one logical package,
// accumulated across declarations and not yet resolved.
type UnpinnedPackage interface {
	Identity() string
	SourceKind() types.SourceKind

	// Incorporate merges another declaration of the same identity into
	// this one and returns the merged requirement. Neither input is
	// mutated. Merging across source kinds fails.
	Incorporate(other UnpinnedPackage) (UnpinnedPackage, error)

	// Resolved pins the requirement to one concrete version or content
	// reference. It never mutates the unpinned form and yields equal
	// pins for equal external state.
	Resolved(ctx context.Context, rt Runtime) (PinnedPackage, error)
}

// PinnedPackage is one concrete, installable resolution.
type PinnedPackage interface {
	Identity() string
	SourceKind() types.SourceKind

	// Pin is the concrete resolution: a version for hub packages, a
	// revision for git, the declared path or URL otherwise.
	Pin() string

	// ProjectName reports the name the fetched package declares for
	// itself. It names the install directory.
	ProjectName(ctx context.Context, rt Runtime) (string, error)

	// FetchMetadata reads the package's own descriptor, exposing its
	// identity and its declared dependencies for transitive discovery.
	FetchMetadata(ctx context.Context, rt Runtime) (types.ProjectMetadata, error)

	Install(ctx context.Context, rt Runtime) error

	// Cleanup releases staged fetch state. Idempotent; an install that
	// already moved its staged tree leaves nothing behind.
	Cleanup() error
}

// loadProjectMetadata reads a fetched package's descriptor and its own
// dependency declarations.
func loadProjectMetadata(rt Runtime, root string) (types.ProjectMetadata, error) {
	project, err := rt.Projects.LoadProject(root)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	decls, err := rt.Projects.LoadDeclarations(root)
	if err != nil {
		return types.ProjectMetadata{}, err
	}
	return types.ProjectMetadata{
		Name:     project.Name,
		Version:  project.Version,
		Packages: decls,
	}, nil
}

// FromDeclaration builds the source variant matching the single
// identity key set on the declaration.
func FromDeclaration(decl types.PackageDecl) (UnpinnedPackage, error) {
	kinds := decl.SourceKinds()
	if len(kinds) != 1 {
		found := "none"
		if len(kinds) > 0 {
			names := make([]string, 0, len(kinds))
			for _, kind := range kinds {
				names = append(names, string(kind))
			}
			found = strings.Join(names, ", ")
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("package declaration must set exactly one of package, git, local or tarball; found %s", found))
	}
	switch kinds[0] {
	case types.SourceKindLocal:
		return newLocalUnpinned(decl), nil
	case types.SourceKindGit:
		return newGitUnpinned(decl), nil
	case types.SourceKindTarball:
		return newTarballUnpinned(decl)
	case types.SourceKindHub:
		return newHubUnpinned(decl)
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported package source kind %q", kinds[0]))
	}
}

// sourceKindConflict reports one identity declared under two source
// kinds. Terminal for resolution.
func sourceKindConflict(identity string, existing types.SourceKind, incoming types.SourceKind) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("package %s is declared with conflicting source kinds %s and %s", identity, existing, incoming))
}
