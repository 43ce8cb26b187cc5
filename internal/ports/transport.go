package ports

import "context"

// TransportPort performs one raw download attempt. Retry policy lives
// with the caller, not here.
type TransportPort interface {
	DownloadFile(ctx context.Context, url string, destPath string) error
}

type GitPort interface {
	CloneCheckout(ctx context.Context, repoURL string, revision string, workDir string) (string, error)
}
