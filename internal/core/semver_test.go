package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry-packages/internal/types"
)

// ---------------------------------------------------------------------------
// ParseVersionSpecifier
// ---------------------------------------------------------------------------

func TestParseVersionSpecifierExact(t *testing.T) {
	spec, err := ParseVersionSpecifier("0.1.2")
	require.NoError(t, err)
	assert.Equal(t, types.MatcherEq, spec.Matcher)
	assert.Equal(t, "0", spec.Major)
	assert.Equal(t, "1", spec.Minor)
	assert.Equal(t, "2", spec.Patch)
	assert.Empty(t, spec.Prerelease)
	assert.Empty(t, spec.Build)
}

func TestParseVersionSpecifierMatchers(t *testing.T) {
	tests := []struct {
		raw     string
		matcher types.Matcher
	}{
		{"=0.1.2", types.MatcherEq},
		{">0.1.2", types.MatcherGt},
		{">=0.1.2", types.MatcherGte},
		{"<0.1.2", types.MatcherLt},
		{"<=0.1.2", types.MatcherLte},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec, err := ParseVersionSpecifier(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.matcher, spec.Matcher)
			assert.Equal(t, "0.1.2", spec.VersionString())
		})
	}
}

func TestParseVersionSpecifierPrerelease(t *testing.T) {
	spec, err := ParseVersionSpecifier("0.1.4a1")
	require.NoError(t, err)
	assert.Equal(t, types.MatcherEq, spec.Matcher)
	assert.Equal(t, "4", spec.Patch)
	assert.Equal(t, "a1", spec.Prerelease)
	assert.True(t, spec.IsPrerelease())
}

func TestParseVersionSpecifierHyphenPrerelease(t *testing.T) {
	spec, err := ParseVersionSpecifier("1.2.0-rc.1")
	require.NoError(t, err)
	assert.Equal(t, "rc.1", spec.Prerelease)
	assert.Equal(t, "1.2.0-rc.1", spec.VersionString())
}

func TestParseVersionSpecifierNumericPrerelease(t *testing.T) {
	spec, err := ParseVersionSpecifier("0.1.4-1")
	require.NoError(t, err)
	assert.Equal(t, "4", spec.Patch)
	assert.Equal(t, "1", spec.Prerelease)
}

func TestParseVersionSpecifierBuild(t *testing.T) {
	spec, err := ParseVersionSpecifier("1.0.0-beta+exp.sha.5114f85")
	require.NoError(t, err)
	assert.Equal(t, "beta", spec.Prerelease)
	assert.Equal(t, "exp.sha.5114f85", spec.Build)
	assert.Equal(t, "1.0.0-beta+exp.sha.5114f85", spec.VersionString())
}

func TestParseVersionSpecifierVPrefix(t *testing.T) {
	spec, err := ParseVersionSpecifier("v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", spec.VersionString())
}

func TestParseVersionSpecifierLongPatch(t *testing.T) {
	// All trailing digits belong to the patch, not a prerelease.
	spec, err := ParseVersionSpecifier("0.1.41")
	require.NoError(t, err)
	assert.Equal(t, "41", spec.Patch)
	assert.Empty(t, spec.Prerelease)
}

func TestParseVersionSpecifierInvalid(t *testing.T) {
	for _, raw := range []string{"", "1", "1.2", "not-a-version", "1.2.3.4", "~1.2.3"} {
		_, err := ParseVersionSpecifier(raw)
		require.Error(t, err, raw)
		assert.Contains(t, err.Error(), "not a valid semantic version")
	}
}

func TestParseConstraints(t *testing.T) {
	set, err := ParseConstraints([]string{">0.1.2", "<0.1.5"})
	require.NoError(t, err)
	assert.Equal(t, []string{">0.1.2", "<0.1.5"}, set.Strings())
}

func TestParseConstraintsInvalid(t *testing.T) {
	_, err := ParseConstraints([]string{">0.1.2", "oops"})
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// ConstraintSet
// ---------------------------------------------------------------------------

func TestConstraintSetMergeKeepsOrder(t *testing.T) {
	a, err := ParseConstraints([]string{"=0.1.2"})
	require.NoError(t, err)
	b, err := ParseConstraints([]string{"=0.1.3"})
	require.NoError(t, err)

	merged := a.Merge(b)
	assert.Equal(t, []string{"=0.1.2", "=0.1.3"}, merged.Strings())

	// Inputs unchanged
	assert.Equal(t, []string{"=0.1.2"}, a.Strings())
	assert.Equal(t, []string{"=0.1.3"}, b.Strings())
}

func TestConstraintSetNamesPrerelease(t *testing.T) {
	plain, err := ParseConstraints([]string{">0.1.0", "<0.2.0"})
	require.NoError(t, err)
	assert.False(t, plain.NamesPrerelease())

	pre, err := ParseConstraints([]string{"=0.1.4a1"})
	require.NoError(t, err)
	assert.True(t, pre.NamesPrerelease())
}

// ---------------------------------------------------------------------------
// ConstraintSet.Resolve
// ---------------------------------------------------------------------------

func TestResolveExact(t *testing.T) {
	set, err := ParseConstraints([]string{"=0.1.2", "<0.1.4"})
	require.NoError(t, err)

	version, err := set.Resolve("acme/a", []string{"0.1.2", "0.1.3"}, false)
	require.NoError(t, err)
	assert.Equal(t, "0.1.2", version)
}

func TestResolveNoConstraintsPicksHighest(t *testing.T) {
	version, err := ConstraintSet{}.Resolve("acme/a", []string{"0.1.2", "0.2.0", "0.1.3"}, false)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", version)
}

func TestResolveConflictMessage(t *testing.T) {
	set, err := ParseConstraints([]string{"0.1.2", "0.1.3"})
	require.NoError(t, err)

	_, err = set.Resolve("acme/a", []string{"0.1.2", "0.1.3"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "=0.1.2")
	assert.Contains(t, err.Error(), "=0.1.3")
	assert.Contains(t, err.Error(), "0.1.2, 0.1.3")
}

func TestResolveNoAvailable(t *testing.T) {
	set, err := ParseConstraints([]string{"=0.1.2"})
	require.NoError(t, err)

	_, err = set.Resolve("acme/a", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available versions for package acme/a")
}

func TestResolveOrderIndependent(t *testing.T) {
	a, err := ParseConstraints([]string{">0.1.0"})
	require.NoError(t, err)
	b, err := ParseConstraints([]string{"<0.1.4"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3", "0.1.4"}

	ab, err := a.Merge(b).Resolve("acme/a", available, false)
	require.NoError(t, err)
	ba, err := b.Merge(a).Resolve("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	assert.Equal(t, "0.1.3", ab)
}

func TestResolveRepeatable(t *testing.T) {
	set, err := ParseConstraints([]string{">0.1.0"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3"}

	first, err := set.Resolve("acme/a", available, false)
	require.NoError(t, err)
	second, err := set.Resolve("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// ---------------------------------------------------------------------------
// Prerelease handling
// ---------------------------------------------------------------------------

func TestResolvePrereleaseExcludedByDefault(t *testing.T) {
	set, err := ParseConstraints([]string{">0.1.0", "<0.1.4"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3", "0.1.4a1"}

	version, err := set.Resolve("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, "0.1.3", version)

	latest, err := set.Latest("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, "0.1.3", latest)
}

func TestResolvePrereleaseOptIn(t *testing.T) {
	set, err := ParseConstraints([]string{">0.1.0", "<0.1.4"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3", "0.1.4a1"}

	// An exclusive upper bound still rejects a prerelease of its own
	// release triple, so the pin stays at 0.1.3.
	version, err := set.Resolve("acme/a", available, true)
	require.NoError(t, err)
	assert.Equal(t, "0.1.3", version)

	latest, err := set.Latest("acme/a", available, true)
	require.NoError(t, err)
	assert.Equal(t, "0.1.4a1", latest)
}

func TestResolvePrereleaseOptInWideBound(t *testing.T) {
	set, err := ParseConstraints([]string{">0.1.2", "<0.1.5"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3", "0.1.4a1"}

	version, err := set.Resolve("acme/a", available, true)
	require.NoError(t, err)
	assert.Equal(t, "0.1.4a1", version)
}

func TestResolvePrereleaseExplicitlyRequested(t *testing.T) {
	set, err := ParseConstraints([]string{"0.1.4a1"})
	require.NoError(t, err)
	available := []string{"0.1.2", "0.1.3", "0.1.4a1"}

	version, err := set.Resolve("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, "0.1.4a1", version)

	latest, err := set.Latest("acme/a", available, false)
	require.NoError(t, err)
	assert.Equal(t, "0.1.4a1", latest)
}

// ---------------------------------------------------------------------------
// versionCache
// ---------------------------------------------------------------------------

func TestVersionCacheCompare(t *testing.T) {
	cache := newVersionCache()

	assert.Equal(t, -1, cache.compare("0.1.2", "0.1.3"))
	assert.Equal(t, 0, cache.compare("0.1.2", "0.1.2"))
	assert.Equal(t, 1, cache.compare("0.1.3", "0.1.2"))
}

func TestVersionCacheComparePrerelease(t *testing.T) {
	cache := newVersionCache()

	// A prerelease orders below its release.
	assert.Equal(t, -1, cache.compare("0.1.4-a1", "0.1.4"))
	assert.Equal(t, 1, cache.compare("0.1.4-a1", "0.1.3"))
}

func TestVersionCacheCompareInvalid(t *testing.T) {
	cache := newVersionCache()
	assert.Equal(t, 0, cache.compare("not-valid!!!", "1.0.0"))
}

func TestVersionCacheMemoizes(t *testing.T) {
	cache := newVersionCache()

	v1, err := cache.version("1.0.0")
	require.NoError(t, err)
	v2, err := cache.version("1.0.0")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}
