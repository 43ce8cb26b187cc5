// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// PackageArchive builds a minimal installable package tarball: a single
// root directory named after the package, holding its descriptor and a
// dir_1 payload.
func PackageArchive(t *testing.T, name string, version string) []byte {
	t.Helper()
	files := []struct {
		path string
		body string
	}{
		{name + "/quarry_project.yml", fmt.Sprintf("name: %s\nversion: %s\n", name, version)},
		{name + "/dir_1/file.txt", "contents\n"},
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, file := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     file.path,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(file.body)),
		}))
		_, err := tw.Write([]byte(file.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// WriteProjectDescriptor writes a quarry_project.yml into dir.
func WriteProjectDescriptor(t *testing.T, dir string, name string, version string) {
	t.Helper()
	descriptor := fmt.Sprintf("name: %s\nversion: %s\n", name, version)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quarry_project.yml"), []byte(descriptor), 0o644))
}
