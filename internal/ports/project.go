package ports

import "quarry-packages/internal/types"

type ProjectLoaderPort interface {
	LoadProject(rootPath string) (types.Project, error)
	LoadDeclarations(rootPath string) ([]types.PackageDecl, error)
}
