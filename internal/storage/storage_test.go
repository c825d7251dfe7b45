package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well known development storage key
const devKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

type failingSink struct{}

func (failingSink) Name() string                              { return "failing" }
func (failingSink) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func TestFileSink_Put(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(filepath.Join(dir, "out"))

	require.NoError(t, sink.Put(context.Background(), "results.txt", []byte("first")))
	require.NoError(t, sink.Put(context.Background(), "results.txt", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "out", "results.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSink_AbsolutePath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "abs.txt")
	sink := NewFileSink("ignored")

	assert.Equal(t, target, sink.Path(target))
	require.NoError(t, sink.Put(context.Background(), target, []byte("x")))
	_, err := os.Stat(target)
	assert.NoError(t, err)
}

func TestFileSink_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewFileSink(t.TempDir()).Put(ctx, "r.txt", nil), context.Canceled)
}

func TestMultiSink(t *testing.T) {
	dir := t.TempDir()
	sink := MultiSink{NewFileSink(dir), failingSink{}}

	err := sink.Put(context.Background(), "r.txt", []byte("data"))
	assert.ErrorContains(t, err, "failing: disk full")

	data, readErr := os.ReadFile(filepath.Join(dir, "r.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "data", string(data))
}

func TestNewAzureBlobSink_InvalidKey(t *testing.T) {
	_, err := NewAzureBlobSink("account", "not base64!", "plates", "")
	assert.Error(t, err)
}

func TestAzureBlobSink_Put(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sink, err := NewAzureBlobSink("devstoreaccount1", devKey, "plates", server.URL+"/devstoreaccount1")
	require.NoError(t, err)
	assert.Equal(t, "azure", sink.Name())
	assert.Equal(t, "plates", sink.Container())

	require.NoError(t, sink.Put(context.Background(), "ZH-1-9.txt", []byte("=== ZH-1 ===\n\n")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasSuffix(path, "/plates/ZH-1-9.txt"), path)
	assert.Equal(t, "=== ZH-1 ===\n\n", body)
}
