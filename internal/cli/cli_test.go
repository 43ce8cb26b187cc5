package cli

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry-packages/internal/app"
	"quarry-packages/internal/types"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{"install", "lock", "clean"}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestInstallCommandFlags(t *testing.T) {
	cmd := newInstallCommand()
	flags := []string{
		"project-dir", "packages-file", "install-dir",
		"downloads-dir", "hub-url", "allow-prerelease",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
}

func TestLockCommandFlags(t *testing.T) {
	cmd := newLockCommand()
	flags := []string{
		"project-dir", "packages-file", "downloads-dir",
		"hub-url", "allow-prerelease",
	}
	for _, name := range flags {
		flag := cmd.Flags().Lookup(name)
		assert.NotNil(t, flag, "missing flag: %s", name)
	}
	assert.Nil(t, cmd.Flags().Lookup("install-dir"), "lock does not install")
}

func TestCleanCommandFlags(t *testing.T) {
	cmd := newCleanCommand()
	assert.NotNil(t, cmd.Flags().Lookup("project-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("install-dir"))
	assert.NotNil(t, cmd.Flags().Lookup("downloads-dir"))
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

func TestFormatRow(t *testing.T) {
	tests := []struct {
		name     string
		row      app.PackageRow
		expected string
	}{
		{
			name:     "hub package pinned at latest",
			row:      app.PackageRow{Name: "a", Kind: types.SourceKindHub, Pin: "0.1.3", Latest: "0.1.3"},
			expected: "a 0.1.3 (hub)",
		},
		{
			name:     "hub package trailing latest",
			row:      app.PackageRow{Name: "a", Kind: types.SourceKindHub, Pin: "0.1.3", Latest: "0.1.4"},
			expected: "a 0.1.3 (hub), latest 0.1.4 available",
		},
		{
			name:     "git package has no latest",
			row:      app.PackageRow{Name: "audit", Kind: types.SourceKindGit, Pin: "v1.0.0"},
			expected: "audit v1.0.0 (git)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatRow(tt.row))
		})
	}
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("archive pkg.tar.gz must contain exactly one top-level directory, found 2"),
			expected: 2,
		},
		{
			name: "source kind conflict",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("package a is declared with conflicting source kinds hub and git"),
			expected: 3,
		},
		{
			name: "revision conflict",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("git package https://example.com/audit.git declares conflicting revisions main, v1.0.0"),
			expected: 3,
		},
		{
			name: "checksum mismatch",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("checksum mismatch for pkg.tar.gz: expected aaa, got bbb"),
			expected: 3,
		},
		{
			name: "no satisfying version",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("no satisfying version for package a: requested =0.1.2, =0.1.3, available versions 0.1.2, 0.1.3"),
			expected: 4,
		},
		{
			name: "no available versions",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("no available versions for package libbar"),
			expected: 4,
		},
		{
			name: "not found generic",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("package a was not found in the package index"),
			expected: 4,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to install package a"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
