package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/shared"
	"quarry-packages/internal/types"
)

// HubRegistryAdapter talks to a package hub over its JSON API:
//
//	GET /api/v1/index.json            -> all package names
//	GET /api/v1/<name>.json           -> versions document
//	GET /api/v1/<name>/<version>.json -> release metadata
type HubRegistryAdapter struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
}

const defaultHubTimeout = 30 * time.Second
const defaultHubRetries = 3
const defaultHubRetryDelay = 200 * time.Millisecond
const maxHubRetryDelay = 2 * time.Second

func NewHubRegistryAdapter(baseURL string, timeoutSec int, retries int, retryDelayMs int) HubRegistryAdapter {
	return HubRegistryAdapter{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Timeout:    normalizeHubTimeout(timeoutSec),
		Retries:    normalizeHubRetries(retries),
		RetryDelay: normalizeHubRetryDelay(retryDelayMs),
	}
}

func (a HubRegistryAdapter) ListPackageNames(ctx context.Context) ([]string, error) {
	var names []string
	requestURL := a.BaseURL + "/api/v1/index.json"
	if err := a.getJSON(ctx, requestURL, "package index not found", &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (a HubRegistryAdapter) AvailableVersions(ctx context.Context, name string) ([]string, error) {
	var doc hubPackageDoc
	requestURL := a.BaseURL + "/api/v1/" + escapeHubPath(name) + ".json"
	notFound := fmt.Sprintf("package %s was not found in the package index", name)
	if err := a.getJSON(ctx, requestURL, notFound, &doc); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(doc.Versions))
	for version := range doc.Versions {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	return versions, nil
}

func (a HubRegistryAdapter) PackageVersion(ctx context.Context, name string, version string) (types.HubRelease, error) {
	var release types.HubRelease
	requestURL := a.BaseURL + "/api/v1/" + escapeHubPath(name) + "/" + url.PathEscape(version) + ".json"
	notFound := fmt.Sprintf("version %s of package %s was not found in the package index", version, name)
	if err := a.getJSON(ctx, requestURL, notFound, &release); err != nil {
		return types.HubRelease{}, err
	}
	return release, nil
}

// hubPackageDoc is the versions document; only the version keys matter
// here, the release bodies are fetched per version.
type hubPackageDoc struct {
	Versions map[string]json.RawMessage `json:"versions"`
}

func (a HubRegistryAdapter) getJSON(ctx context.Context, requestURL string, notFoundMsg string, out interface{}) error {
	if a.BaseURL == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("hub url is empty")
	}
	var lastErr error
	for attempt := 0; attempt < a.Retries; attempt++ {
		if ctx.Err() != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("hub request canceled").
				WithCause(ctx.Err())
		}
		retry, err := a.getJSONOnce(ctx, requestURL, notFoundMsg, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == a.Retries-1 {
			return err
		}
		time.Sleep(a.hubRetryDelay(attempt))
	}
	return lastErr
}

func (a HubRegistryAdapter) getJSONOnce(ctx context.Context, requestURL string, notFoundMsg string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create hub request").
			WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	client := &http.Client{Timeout: a.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("hub request failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(notFoundMsg).
			WithCause(shared.HTTPStatusError(resp.StatusCode, requestURL))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return retry, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("hub request failed").
			WithCause(shared.HTTPStatusError(resp.StatusCode, requestURL))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read hub response").
			WithCause(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse hub response").
			WithCause(err)
	}
	return false, nil
}

func (a HubRegistryAdapter) hubRetryDelay(attempt int) time.Duration {
	delay := a.RetryDelay * time.Duration(1<<attempt)
	if delay > maxHubRetryDelay {
		delay = maxHubRetryDelay
	}
	jitter := time.Duration(time.Now().UnixNano() % int64(delay/2+1))
	return delay + jitter
}

// escapeHubPath escapes a package id segment by segment, keeping the
// owner/name slash intact.
func escapeHubPath(name string) string {
	segments := strings.Split(name, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func normalizeHubTimeout(value int) time.Duration {
	timeout := time.Duration(value) * time.Second
	if timeout <= 0 {
		return defaultHubTimeout
	}
	return timeout
}

func normalizeHubRetries(value int) int {
	if value <= 0 {
		return defaultHubRetries
	}
	return value
}

func normalizeHubRetryDelay(value int) time.Duration {
	delay := time.Duration(value) * time.Millisecond
	if delay <= 0 {
		return defaultHubRetryDelay
	}
	return delay
}

var _ ports.RegistryPort = HubRegistryAdapter{}
