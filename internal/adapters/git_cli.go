package adapters

import (
	"context"
	"crypto/sha1"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/shared"
)

// GitCLIAdapter drives the git binary. One clone per repository url is
// kept under the work directory and reused across calls.
type GitCLIAdapter struct{}

func NewGitCLIAdapter() GitCLIAdapter {
	return GitCLIAdapter{}
}

func (a GitCLIAdapter) CloneCheckout(ctx context.Context, repoURL string, revision string, workDir string) (string, error) {
	repo := strings.TrimSpace(repoURL)
	if repo == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("git repository url is empty")
	}
	checkoutDir := filepath.Join(workDir, checkoutDirName(repo))
	if _, err := os.Stat(filepath.Join(checkoutDir, ".git")); err != nil {
		if err := a.run(ctx, "", "clone", "--quiet", "--", repo, checkoutDir); err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to clone %s", repo)).
				WithCause(err)
		}
	} else if err := a.run(ctx, checkoutDir, "fetch", "--tags", "--quiet"); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to refresh clone of %s", repo)).
			WithCause(err)
	}

	target := strings.TrimSpace(revision)
	if target == "" || target == "HEAD" {
		// origin/HEAD tracks the remote default branch, also when the
		// reused clone sits on an older detached revision.
		if err := a.run(ctx, checkoutDir, "checkout", "--quiet", "origin/HEAD"); err != nil {
			return "", errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("revision HEAD was not found in %s", repo)).
				WithCause(err)
		}
		return checkoutDir, nil
	}
	// Branch names must track the remote tip, so origin/<rev> is tried
	// first; tags and commits only exist under their plain name.
	if err := a.run(ctx, checkoutDir, "checkout", "--quiet", "origin/"+target); err == nil {
		return checkoutDir, nil
	}
	if err := a.run(ctx, checkoutDir, "checkout", "--quiet", target); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("revision %s was not found in %s", revision, repo)).
			WithCause(err)
	}
	return checkoutDir, nil
}

func (a GitCLIAdapter) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return shared.CommandError(output, err)
	}
	return nil
}

// checkoutDirName keeps the short repository name readable and appends a
// url digest so equally named repositories from different owners do not
// share a clone.
func checkoutDirName(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	short := path.Base(trimmed)
	if short == "" || short == "." || short == "/" {
		short = "repo"
	}
	sum := sha1.Sum([]byte(repoURL))
	return fmt.Sprintf("%s-%x", short, sum[:4])
}

var _ ports.GitPort = GitCLIAdapter{}
