package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry-packages/internal/types"
)

func hubRuntime(t *testing.T, registry *fakeRegistry, transport *fakeTransport) Runtime {
	t.Helper()
	return Runtime{
		Registry:     registry,
		Transport:    transport,
		Projects:     &fakeProjects{},
		DownloadsDir: t.TempDir(),
		InstallRoot:  t.TempDir(),
	}
}

// ---------------------------------------------------------------------------
// HubUnpinned
// ---------------------------------------------------------------------------

func TestHubIncorporateMergesConstraints(t *testing.T) {
	first, err := FromDeclaration(types.PackageDecl{
		Package:           "acme-test/a",
		Version:           types.StringList{">0.1.2"},
		InstallPrerelease: boolPtr(true),
	})
	require.NoError(t, err)
	second, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{"<0.1.5"},
	})
	require.NoError(t, err)

	merged, err := first.Incorporate(second)
	require.NoError(t, err)

	hub, ok := merged.(HubUnpinned)
	require.True(t, ok)
	assert.Equal(t, []string{">0.1.2", "<0.1.5"}, hub.constraints.Strings())
	// Opt-in is monotonic: one declaration opting in covers the merge.
	assert.True(t, hub.installPrerelease)
}

func TestHubResolvePin(t *testing.T) {
	rt := hubRuntime(t, testRegistry(), &fakeTransport{})
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{">0.1.2"},
	})
	require.NoError(t, err)

	pin, err := unpinned.Resolved(context.Background(), rt)
	require.NoError(t, err)
	assert.Equal(t, "acme-test/a", pin.Identity())
	assert.Equal(t, types.SourceKindHub, pin.SourceKind())
	assert.Equal(t, "0.1.3", pin.Pin())
}

func TestHubResolveMissingPackage(t *testing.T) {
	rt := hubRuntime(t, testRegistry(), &fakeTransport{})
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/zzz",
		Version: types.StringList{"0.1.2"},
	})
	require.NoError(t, err)

	_, err = unpinned.Resolved(context.Background(), rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package acme-test/zzz was not found in the package index")
}

func TestHubResolveConflict(t *testing.T) {
	rt := hubRuntime(t, testRegistry(), &fakeTransport{})
	first, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{"0.1.2"},
	})
	require.NoError(t, err)
	second, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{"0.1.3"},
	})
	require.NoError(t, err)
	merged, err := first.Incorporate(second)
	require.NoError(t, err)

	_, err = merged.Resolved(context.Background(), rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "=0.1.2")
	assert.Contains(t, err.Error(), "=0.1.3")
	assert.Contains(t, err.Error(), "0.1.2, 0.1.3, 0.1.4a1")
}

// ---------------------------------------------------------------------------
// HubPinned
// ---------------------------------------------------------------------------

func TestHubPinnedMetadata(t *testing.T) {
	rt := hubRuntime(t, testRegistry(), &fakeTransport{})
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/b",
		Version: types.StringList{"0.2.1"},
	})
	require.NoError(t, err)
	pin, err := unpinned.Resolved(context.Background(), rt)
	require.NoError(t, err)

	meta, err := pin.FetchMetadata(context.Background(), rt)
	require.NoError(t, err)
	assert.Equal(t, "b", meta.Name)
	assert.Equal(t, "0.2.1", meta.Version)
	require.Len(t, meta.Packages, 1)
	assert.Equal(t, "acme-test/a", meta.Packages[0].Package)
}

func TestHubPinnedMetadataNameFallback(t *testing.T) {
	registry := &fakeRegistry{packages: map[string]map[string]types.HubRelease{
		"acme-test/a": {"0.1.2": {Version: "0.1.2"}},
	}}
	rt := hubRuntime(t, registry, &fakeTransport{})
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{"0.1.2"},
	})
	require.NoError(t, err)
	pin, err := unpinned.Resolved(context.Background(), rt)
	require.NoError(t, err)

	name, err := pin.ProjectName(context.Background(), rt)
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestHubInstall(t *testing.T) {
	transport := &fakeTransport{payload: tarGzBytes(t, []tarEntry{
		{name: "a-0.1.3/", dir: true},
		{name: "a-0.1.3/quarry_project.yml", body: "name: a\nversion: 0.1.3\n"},
		{name: "a-0.1.3/dir_1/", dir: true},
		{name: "a-0.1.3/dir_1/file.txt", body: "contents\n"},
	})}
	rt := hubRuntime(t, testRegistry(), transport)
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{">0.1.2"},
	})
	require.NoError(t, err)
	pin, err := unpinned.Resolved(context.Background(), rt)
	require.NoError(t, err)

	require.NoError(t, pin.Install(context.Background(), rt))
	require.NoError(t, pin.Cleanup())

	dest := filepath.Join(rt.InstallRoot, "a")
	assert.FileExists(t, filepath.Join(dest, "dir_1", "file.txt"))
	assert.NoDirExists(t, filepath.Join(dest, "a-0.1.3"))

	entries, err := os.ReadDir(rt.DownloadsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHubInstallMissingTarballURL(t *testing.T) {
	registry := &fakeRegistry{packages: map[string]map[string]types.HubRelease{
		"acme-test/a": {"0.1.2": {Name: "a", Version: "0.1.2"}},
	}}
	rt := hubRuntime(t, registry, &fakeTransport{})
	unpinned, err := FromDeclaration(types.PackageDecl{
		Package: "acme-test/a",
		Version: types.StringList{"0.1.2"},
	})
	require.NoError(t, err)
	pin, err := unpinned.Resolved(context.Background(), rt)
	require.NoError(t, err)

	err = pin.Install(context.Background(), rt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no tarball url")
}
