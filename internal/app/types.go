package app

import "quarry-packages/internal/types"

type InstallRequest struct {
	ProjectDir      string
	PackagesFile    string
	InstallDir      string
	DownloadsDir    string
	HubURL          string
	AllowPrerelease bool
}

// PackageRow is one resolved package as reported to the user and the
// lock file. Latest is only set for hub packages.
type PackageRow struct {
	Name   string
	Kind   types.SourceKind
	Pin    string
	Latest string
}

type InstallResult struct {
	Project    string
	Packages   []PackageRow
	InstallDir string
	LockPath   string
}

type LockRequest struct {
	ProjectDir      string
	PackagesFile    string
	DownloadsDir    string
	HubURL          string
	AllowPrerelease bool
}

type LockResult struct {
	Project  string
	Packages []PackageRow
	LockPath string
}

type CleanRequest struct {
	ProjectDir   string
	InstallDir   string
	DownloadsDir string
}

type CleanResult struct {
	Removed []string
}
