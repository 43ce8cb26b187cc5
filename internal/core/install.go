package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// prepareInstallDest ensures the install root exists and clears any
// prior install at the destination for name.
func prepareInstallDest(rt Runtime, name string) (string, error) {
	if strings.TrimSpace(rt.InstallRoot) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("install root is not configured")
	}
	if strings.TrimSpace(name) == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("cannot install a package with an empty name")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("package name %q must not contain path separators", name))
	}
	if err := os.MkdirAll(rt.InstallRoot, 0o755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create install root").
			WithCause(err)
	}
	dest := filepath.Join(rt.InstallRoot, name)
	info, err := os.Lstat(dest)
	if err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			err = os.Remove(dest)
		} else {
			err = os.RemoveAll(dest)
		}
		if err != nil {
			return "", installFailed(name, err)
		}
	}
	return dest, nil
}

// installFailed wraps a filesystem error from the final install step.
func installFailed(name string, cause error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to install package %s", name)).
		WithCause(cause)
}
