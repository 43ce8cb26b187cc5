package ports

import (
	"context"

	"quarry-packages/internal/types"
)

type RegistryPort interface {
	ListPackageNames(ctx context.Context) ([]string, error)
	AvailableVersions(ctx context.Context, name string) ([]string, error)
	PackageVersion(ctx context.Context, name string, version string) (types.HubRelease, error)
}
