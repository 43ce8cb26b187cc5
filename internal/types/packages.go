package types

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// StringList decodes a YAML or JSON value that may be either a single
// scalar or a sequence of scalars.  Version constraints in packages.yml
// are commonly written both ways:
//
//	version: 0.1.2
//	version: [">=0.1.0", "<0.2.0"]
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	}
	var single string
	if err := value.Decode(&single); err != nil {
		return err
	}
	*s = StringList{single}
	return nil
}

func (s *StringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*s = items
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = StringList{single}
	return nil
}

// PackageDecl is one entry of a packages.yml file.  Exactly one of the
// source identity keys (package, git, local, tarball) must be set; the
// remaining fields qualify that source.  The same shape is served by the
// package hub inside version metadata, which is why entries carry JSON
// tags as well.
type PackageDecl struct {
	// Hub packages.
	Package           string     `yaml:"package,omitempty" json:"package,omitempty"`
	Version           StringList `yaml:"version,omitempty" json:"version,omitempty"`
	InstallPrerelease *bool      `yaml:"install-prerelease,omitempty" json:"install-prerelease,omitempty"`

	// Git packages.
	Git          string `yaml:"git,omitempty" json:"git,omitempty"`
	Revision     string `yaml:"revision,omitempty" json:"revision,omitempty"`
	WarnUnpinned *bool  `yaml:"warn-unpinned,omitempty" json:"warn-unpinned,omitempty"`

	// Local packages.
	Local string `yaml:"local,omitempty" json:"local,omitempty"`

	// Tarball packages.
	Tarball      string `yaml:"tarball,omitempty" json:"tarball,omitempty"`
	Name         string `yaml:"name,omitempty" json:"name,omitempty"`
	SHA1         string `yaml:"sha1,omitempty" json:"sha1,omitempty"`
	Subdirectory string `yaml:"subdirectory,omitempty" json:"subdirectory,omitempty"`
}

// SourceKinds returns the kinds whose identity key is set on the
// declaration.  A well-formed declaration has exactly one.
func (d PackageDecl) SourceKinds() []SourceKind {
	var kinds []SourceKind
	if d.Package != "" {
		kinds = append(kinds, SourceKindHub)
	}
	if d.Git != "" {
		kinds = append(kinds, SourceKindGit)
	}
	if d.Local != "" {
		kinds = append(kinds, SourceKindLocal)
	}
	if d.Tarball != "" {
		kinds = append(kinds, SourceKindTarball)
	}
	return kinds
}

type PackagesFile struct {
	Packages []PackageDecl `yaml:"packages"`
}

// Project mirrors the fields of quarry_project.yml that the dependency
// layer cares about.  Anything else in the descriptor is ignored here.
type Project struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// ProjectMetadata is what a fetched package reports about itself: its
// descriptor identity plus its own declared dependencies, which feed
// transitive resolution.
type ProjectMetadata struct {
	Name     string
	Version  string
	Packages []PackageDecl
}

// HubRelease is the metadata the package hub serves for one version of
// one package.
type HubRelease struct {
	Name      string        `json:"name"`
	Version   string        `json:"version"`
	Packages  []PackageDecl `json:"packages"`
	Downloads HubDownloads  `json:"downloads"`
}

type HubDownloads struct {
	TarballURL string `json:"tarball"`
}

type LockEntry struct {
	Name   string     `yaml:"name"`
	Source SourceKind `yaml:"source"`

	// Pin is the concrete resolution: a version for hub packages, a
	// revision for git, the declared path or URL otherwise.
	Pin string `yaml:"pin"`
}

type LockFile struct {
	Packages []LockEntry `yaml:"packages"`
}
