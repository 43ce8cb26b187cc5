package adapters

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/types"
)

const projectDescriptorName = "quarry_project.yml"
const packagesFileName = "packages.yml"

// ProjectFileAdapter reads project descriptors and package declaration
// files from a project root.
type ProjectFileAdapter struct {
	// PackagesPath, when set, overrides where LoadDeclarations looks for
	// the declarations file. Used for the root project when the caller
	// names an explicit file.
	PackagesPath string
}

func NewProjectFileAdapter() ProjectFileAdapter {
	return ProjectFileAdapter{}
}

// LoadProject reads quarry_project.yml. Fields beyond name and version
// belong to other layers and are ignored here.
func (a ProjectFileAdapter) LoadProject(rootPath string) (types.Project, error) {
	path := filepath.Join(rootPath, projectDescriptorName)
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Project{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("project descriptor %s not found", path)).
			WithCause(err)
	}
	var project types.Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return types.Project{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse project descriptor %s", path)).
			WithCause(err)
	}
	if strings.TrimSpace(project.Name) == "" {
		return types.Project{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("project descriptor %s has no name", path))
	}
	return project, nil
}

// LoadDeclarations reads packages.yml next to the descriptor. A missing
// file means the project declares no dependencies, unless the caller
// named an explicit file. Unknown keys are rejected so typos in a
// declaration never pass silently.
func (a ProjectFileAdapter) LoadDeclarations(rootPath string) ([]types.PackageDecl, error) {
	path := a.PackagesPath
	if path == "" {
		path = filepath.Join(rootPath, packagesFileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && a.PackagesPath == "" {
			return nil, nil
		}
		if os.IsNotExist(err) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("declarations file %s not found", path)).
				WithCause(err)
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read %s", path)).
			WithCause(err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file types.PackagesFile
	if err := decoder.Decode(&file); err != nil && err != io.EOF {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse %s", path)).
			WithCause(err)
	}
	return file.Packages, nil
}

var _ ports.ProjectLoaderPort = ProjectFileAdapter{}
