package types

type SourceKind string

const (
	SourceKindLocal   SourceKind = "local"
	SourceKindGit     SourceKind = "git"
	SourceKindTarball SourceKind = "tarball"
	SourceKindHub     SourceKind = "hub"
)

type Matcher string

const (
	MatcherEq  Matcher = "="
	MatcherGt  Matcher = ">"
	MatcherGte Matcher = ">="
	MatcherLt  Matcher = "<"
	MatcherLte Matcher = "<="
)

type ArchiveOrigin string

const (
	ArchiveOriginLocal  ArchiveOrigin = "local"
	ArchiveOriginRemote ArchiveOrigin = "remote"
)
