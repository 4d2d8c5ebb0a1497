package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "test-bucket"})
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsMultipart(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/test-bucket/o")
		assert.Equal(t, "report.txt", r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "header line")
		fmt.Fprintln(w, `{"name":"report.txt","bucket":"test-bucket"}`)
	})

	store := newTestStore(t, handler)
	uri, err := store.PutObject(context.Background(), "report.txt", "text/plain", bytes.NewReader([]byte("header line")))
	require.NoError(t, err)
	assert.Equal(t, "gs://test-bucket/report.txt", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := store.PutObject(context.Background(), "report.txt", "text/plain", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestGetObjectStreamsContent(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/report.txt") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("stored report"))
	})

	store := newTestStore(t, handler)
	rc, err := store.GetObject(context.Background(), "report.txt")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "stored report", string(body))
}

func TestValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	store := newTestStore(t, http.NotFoundHandler())
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.GetObject(context.Background(), "")
	assert.Error(t, err)
}
