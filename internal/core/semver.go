package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"quarry-packages/internal/types"
)

// VersionSpecifier is one version requirement: an optional matcher plus
// the version it applies to. Parts are kept as the strings they were
// declared with; ordering happens through parsed PEP 440 versions.
type VersionSpecifier struct {
	Major      string
	Minor      string
	Patch      string
	Prerelease string
	Build      string
	Matcher    types.Matcher
}

const prereleaseAtom = `(?:0|[1-9]\d*|\d*[A-Za-z-][0-9A-Za-z-]*)`

var versionPattern = regexp.MustCompile(
	`^(?P<matcher>>=|<=|>|<|=)?v?(?P<major>\d+)\.(?P<minor>\d+)\.(?P<patch>\d+)` +
		`(?:-?(?P<prerelease>` + prereleaseAtom + `(?:\.` + prereleaseAtom + `)*))?` +
		`(?:\+(?P<build>[0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// ParseVersionSpecifier parses a declared version string such as
// "0.1.2", ">=1.0.0" or "0.1.4a1". A missing matcher means exact.
func ParseVersionSpecifier(raw string) (VersionSpecifier, error) {
	match := versionPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return VersionSpecifier{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%q is not a valid semantic version", raw))
	}
	spec := VersionSpecifier{Matcher: types.MatcherEq}
	for i, name := range versionPattern.SubexpNames() {
		value := match[i]
		if value == "" {
			continue
		}
		switch name {
		case "matcher":
			spec.Matcher = types.Matcher(value)
		case "major":
			spec.Major = value
		case "minor":
			spec.Minor = value
		case "patch":
			spec.Patch = value
		case "prerelease":
			spec.Prerelease = value
		case "build":
			spec.Build = value
		}
	}
	return spec, nil
}

// ParseConstraints parses each declared constraint string in order.
func ParseConstraints(raws []string) (ConstraintSet, error) {
	var set ConstraintSet
	for _, raw := range raws {
		spec, err := ParseVersionSpecifier(raw)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

func (v VersionSpecifier) String() string {
	return string(v.Matcher) + v.VersionString()
}

// VersionString renders the version without its matcher.
func (v VersionSpecifier) VersionString() string {
	out := v.releaseString()
	if v.Prerelease != "" {
		out += "-" + v.Prerelease
	}
	if v.Build != "" {
		out += "+" + v.Build
	}
	return out
}

// releaseString is the bare numeric triple, used for bound checks.
func (v VersionSpecifier) releaseString() string {
	return fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
}

// comparableString renders the version for PEP 440 parsing. Build
// metadata is excluded from ordering.
func (v VersionSpecifier) comparableString() string {
	if v.Prerelease == "" {
		return v.releaseString()
	}
	return v.releaseString() + "-" + v.Prerelease
}

func (v VersionSpecifier) IsPrerelease() bool {
	return v.Prerelease != ""
}

// ConstraintSet is the ordered accumulation of version constraints
// declared for one package. Order is preserved because it shows up in
// conflict messages.
type ConstraintSet []VersionSpecifier

// Merge concatenates two sets, keeping declaration order.
func (s ConstraintSet) Merge(other ConstraintSet) ConstraintSet {
	merged := make(ConstraintSet, 0, len(s)+len(other))
	merged = append(merged, s...)
	merged = append(merged, other...)
	return merged
}

// Strings returns the literal constraint forms, matcher included.
func (s ConstraintSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, spec := range s {
		out = append(out, spec.String())
	}
	return out
}

// NamesPrerelease reports whether any accumulated constraint carries a
// prerelease component. Declaring one is an implicit opt-in: asking for
// "0.1.4a1" must be able to select it.
func (s ConstraintSet) NamesPrerelease() bool {
	for _, spec := range s {
		if spec.IsPrerelease() {
			return true
		}
	}
	return false
}

// Resolve picks the highest available version satisfying every
// constraint in the set. Prerelease survivors are dropped unless
// allowPrerelease is set or the set itself names a prerelease.
func (s ConstraintSet) Resolve(name string, available []string, allowPrerelease bool) (string, error) {
	return s.selectVersion(name, available, allowPrerelease, false)
}

// Latest answers the newest installable version for reporting next to a
// pin. It applies the same constraints but with permissive bound
// semantics, so an opted-in prerelease just above the pinned range is
// still reported.
func (s ConstraintSet) Latest(name string, available []string, allowPrerelease bool) (string, error) {
	return s.selectVersion(name, available, allowPrerelease, true)
}

func (s ConstraintSet) selectVersion(name string, available []string, allowPrerelease bool, permissive bool) (string, error) {
	if len(available) == 0 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no available versions for package %s", name))
	}
	cache := newVersionCache()
	allow := allowPrerelease || s.NamesPrerelease()
	var survivors []string
	for _, candidate := range available {
		parsed, err := ParseVersionSpecifier(candidate)
		if err != nil {
			return "", err
		}
		if parsed.IsPrerelease() && !allow {
			continue
		}
		ok, err := s.satisfiedBy(parsed, cache, permissive)
		if err != nil {
			return "", err
		}
		if ok {
			survivors = append(survivors, candidate)
		}
	}
	if len(survivors) == 0 {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no satisfying version for package %s: requested %s, available versions %s",
				name, strings.Join(s.Strings(), ", "), strings.Join(available, ", ")))
	}
	sort.Slice(survivors, func(i, j int) bool {
		return cache.compare(survivors[i], survivors[j]) > 0
	})
	return survivors[0], nil
}

func (s ConstraintSet) satisfiedBy(candidate VersionSpecifier, cache *versionCache, permissive bool) (bool, error) {
	for _, spec := range s {
		ok, err := satisfies(candidate, spec, cache, permissive)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// satisfies checks one candidate version against one declared
// specifier. A prerelease never satisfies an exclusive upper bound on
// its own release triple ("<0.1.4" rejects "0.1.4a1"); permissive mode,
// used by latest-version queries, relaxes exactly that rule.
func satisfies(candidate VersionSpecifier, spec VersionSpecifier, cache *versionCache, permissive bool) (bool, error) {
	cmp, err := cache.compareStrict(candidate.comparableString(), spec.comparableString())
	if err != nil {
		return false, err
	}
	if !permissive && spec.Matcher == types.MatcherLt &&
		candidate.IsPrerelease() && !spec.IsPrerelease() {
		base, err := cache.compareStrict(candidate.releaseString(), spec.releaseString())
		if err != nil {
			return false, err
		}
		if base == 0 {
			return false, nil
		}
	}
	switch spec.Matcher {
	case types.MatcherEq:
		return cmp == 0, nil
	case types.MatcherGt:
		return cmp > 0, nil
	case types.MatcherGte:
		return cmp >= 0, nil
	case types.MatcherLt:
		return cmp < 0, nil
	case types.MatcherLte:
		return cmp <= 0, nil
	default:
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported version matcher %q", spec.Matcher))
	}
}

// versionCache memoizes parsed PEP 440 versions so constraint checks
// and sorting reuse parse results.
type versionCache struct {
	pep map[string]pep440.Version
}

func newVersionCache() *versionCache {
	return &versionCache{pep: map[string]pep440.Version{}}
}

func (c *versionCache) version(value string) (pep440.Version, error) {
	if parsed, ok := c.pep[value]; ok {
		return parsed, nil
	}
	parsed, err := pep440.Parse(value)
	if err != nil {
		return pep440.Version{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%q is not an orderable version", value)).
			WithCause(err)
	}
	c.pep[value] = parsed
	return parsed, nil
}

// compareStrict returns -1, 0, or 1 comparing two version strings.
func (c *versionCache) compareStrict(a string, b string) (int, error) {
	v1, err := c.version(a)
	if err != nil {
		return 0, err
	}
	v2, err := c.version(b)
	if err != nil {
		return 0, err
	}
	return v1.Compare(v2), nil
}

// compare is compareStrict for sorting contexts. Returns 0 on parse
// errors.
func (c *versionCache) compare(a string, b string) int {
	cmp, err := c.compareStrict(a, b)
	if err != nil {
		return 0
	}
	return cmp
}
