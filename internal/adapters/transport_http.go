package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/shared"
)

// HTTPTransportAdapter performs single download attempts. It carries no
// retry loop of its own; it marks connection-class failures so the
// caller's retry predicate can tell them from permanent ones.
type HTTPTransportAdapter struct {
	Timeout time.Duration
}

const defaultTransportTimeout = 120 * time.Second

func NewHTTPTransportAdapter(timeoutSec int) HTTPTransportAdapter {
	timeout := time.Duration(timeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultTransportTimeout
	}
	return HTTPTransportAdapter{Timeout: timeout}
}

func (a HTTPTransportAdapter) DownloadFile(ctx context.Context, rawURL string, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid download url %s", rawURL)).
			WithCause(err)
	}
	client := &http.Client{Timeout: a.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return shared.MarkConnection(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		// Server hiccups behave like transient connection failures.
		return shared.MarkConnection(shared.HTTPStatusError(resp.StatusCode, rawURL))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("download of %s was refused", rawURL)).
			WithCause(shared.HTTPStatusError(resp.StatusCode, rawURL))
	}

	out, err := os.Create(destPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to open download target %s", destPath)).
			WithCause(err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		// A failure mid-body is a dropped connection.
		return shared.MarkConnection(err)
	}
	if err := out.Close(); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to finish download target %s", destPath)).
			WithCause(err)
	}
	return nil
}

var _ ports.TransportPort = HTTPTransportAdapter{}
