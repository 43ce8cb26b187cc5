package adapters

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quarry-packages/internal/shared"
)

func TestHTTPTransportAdapterDownload(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("archive bytes"))
	})
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	require.NoError(t, adapter.DownloadFile(t.Context(), server.URL+"/pkg.tar.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestHTTPTransportAdapterOverwritesDest(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	})
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("previous longer contents"), 0o644))

	require.NoError(t, adapter.DownloadFile(t.Context(), server.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestHTTPTransportAdapterNotFound(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	err := adapter.DownloadFile(t.Context(), server.URL, dest)
	require.Error(t, err)
	// A 404 is permanent; the retry loop must not chew on it.
	assert.False(t, shared.IsConnection(err))
	if diff := cmp.Diff(errbuilder.CodeNotFound, errbuilder.CodeOf(err)); diff != "" {
		t.Fatalf("unexpected error code (-want +got):\n%s", diff)
	}
}

func TestHTTPTransportAdapterServerErrorIsRetryable(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	err := adapter.DownloadFile(t.Context(), server.URL, dest)
	require.Error(t, err)
	assert.True(t, shared.IsConnection(err))
}

func TestHTTPTransportAdapterRefusedConnectionIsRetryable(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := server.URL
	server.Close()
	adapter := NewHTTPTransportAdapter(1)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	err := adapter.DownloadFile(t.Context(), url, dest)
	require.Error(t, err)
	assert.True(t, shared.IsConnection(err))
}

func TestHTTPTransportAdapterTruncatedBodyIsRetryable(t *testing.T) {
	server := hubServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte("short"))
	})
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	err := adapter.DownloadFile(t.Context(), server.URL, dest)
	require.Error(t, err)
	assert.True(t, shared.IsConnection(err))
}

func TestHTTPTransportAdapterBadURL(t *testing.T) {
	adapter := NewHTTPTransportAdapter(5)
	dest := filepath.Join(t.TempDir(), "archive.tar.gz")

	err := adapter.DownloadFile(t.Context(), "http://bad url/archive.tar.gz", dest)
	require.Error(t, err)
	assert.False(t, shared.IsConnection(err))
}
