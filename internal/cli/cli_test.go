package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/plategate-go/internal/errors"
	"github.com/anime-shed/plategate-go/internal/ocr"
	"github.com/anime-shed/plategate-go/internal/portal/portaltest"
	"github.com/anime-shed/plategate-go/pkg/models"
)

const solution = "K7P2Q"

func init() {
	ocr.Register("cli-test", func(ocr.Settings) (ocr.Engine, error) {
		return ocr.EngineFunc(func(context.Context, image.Image) (string, error) { return solution, nil }), nil
	})
}

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("PLATEGATE_BASE_URL", baseURL)
	t.Setenv("PLATEGATE_OCR_ENGINE", "cli-test")
	t.Setenv("PLATEGATE_LOGIN_PACING", "0s")
	t.Setenv("PLATEGATE_RESET_PACING", "0s")
	t.Setenv("PLATEGATE_TASK_RETRY_DELAY", "1ms")
	t.Setenv("PLATEGATE_HTTP_TIMEOUT", "5s")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGrab_WritesResults(t *testing.T) {
	fake := portaltest.New(portaltest.Config{
		Canton:   models.CantonZurich,
		Solution: solution,
		Owners: map[int][]models.Owner{
			6: {{Type: "Halter", Name: "Muster Max", Street: "Bahnhofstrasse 1", City: "8001 Zürich"}},
		},
	})
	defer fake.Close()
	setupEnv(t, fake.BaseURL())
	outfile := filepath.Join(t.TempDir(), "out", "results.txt")

	stdout, err := execute(t, "grab", "zh", "5", "7", "-t", "1", "-o", outfile)
	require.NoError(t, err)

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	assert.Equal(t,
		"=== ZH-5 ===\n\n"+
			"=== ZH-6 ===\nHalter\nMuster Max\nBahnhofstrasse 1\n8001 Zürich\n\n\n"+
			"=== ZH-7 ===\n\n",
		string(data))

	assert.Contains(t, stdout, "PLATEGATE")
	assert.Contains(t, stdout, "queried ZH-5 to ZH-7, found 1 vehicle owners, dumped owner data to "+outfile)
	assert.Contains(t, stdout, "stats raw data (size 1): [first_guess]")
	assert.Contains(t, stdout, "logins: 1 first guess, 0 later guess, 0 failed")
	assert.Zero(t, fake.Stats().QuotaViolations)
}

func TestGrab_NoOwners(t *testing.T) {
	fake := portaltest.New(portaltest.Config{Canton: models.CantonZurich, Solution: solution})
	defer fake.Close()
	// the flag wins over the environment
	setupEnv(t, "http://127.0.0.1:1/eindex/")
	outfile := filepath.Join(t.TempDir(), "results.txt")

	stdout, err := execute(t, "grab", "ZH", "42", "--base-url", fake.BaseURL(), "--log-format", "text", "-q", "-o", outfile)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "PLATEGATE")
	assert.Contains(t, stdout, "queried ZH-42, found 0 vehicle owners, dumped owner data to "+outfile)
	assert.NotContains(t, stdout, "sorry")

	data, err := os.ReadFile(outfile)
	require.NoError(t, err)
	assert.Equal(t, "=== ZH-42 ===\n\n", string(data))
}

func TestGrab_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"start zero", []string{"grab", "ZH", "0"}},
		{"start too large", []string{"grab", "ZH", "1000000"}},
		{"end before start", []string{"grab", "ZH", "9", "3"}},
		{"unknown canton", []string{"grab", "GE", "1"}},
		{"no threads", []string{"grab", "ZH", "1", "-t", "0"}},
		{"not a number", []string{"grab", "ZH", "abc"}},
	}

	fake := portaltest.New(portaltest.Config{Canton: models.CantonZurich, Solution: solution})
	defer fake.Close()
	setupEnv(t, fake.BaseURL())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outfile := filepath.Join(t.TempDir(), "results.txt")
			_, err := execute(t, append(tt.args, "-q", "-o", outfile)...)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "got %v", err)

			_, statErr := os.Stat(outfile)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
	assert.Zero(t, fake.Stats().LoginPages, "validation happens before any request")
}

func TestGrab_ArgumentCount(t *testing.T) {
	_, err := execute(t, "grab", "ZH")
	assert.Error(t, err)
}

func TestRoot_InvalidConfig(t *testing.T) {
	t.Setenv("PLATEGATE_CAPTCHA_WINDOW", "0s")
	_, err := execute(t, "grab", "ZH", "1")
	assert.ErrorContains(t, err, "timeouts must be > 0")
}

func writeSample(t *testing.T, dir, name string) {
	t.Helper()
	img := imaging.New(40, 20, color.White)
	require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
}

func TestCalibrate(t *testing.T) {
	setupEnv(t, "http://127.0.0.1/eindex/")
	dir := t.TempDir()
	writeSample(t, dir, "K7P2Q.png")
	writeSample(t, dir, "ABCDE_1.png")

	stdout, err := execute(t, "calibrate", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "samples:  2")
	assert.Contains(t, stdout, "exact:    1 (50.0%)")
	assert.Contains(t, stdout, `miss ABCDE_1.png: expected "ABCDE", got "K7P2Q"`)
}

func TestCalibrate_JSON(t *testing.T) {
	setupEnv(t, "http://127.0.0.1/eindex/")
	dir := t.TempDir()
	writeSample(t, dir, "K7P2Q.png")

	stdout, err := execute(t, "calibrate", "--json", dir)
	require.NoError(t, err)

	var report ocr.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 1, report.Samples)
	assert.InDelta(t, 1.0, report.Accuracy, 1e-9)
}

func TestCalibrate_MissingDir(t *testing.T) {
	setupEnv(t, "http://127.0.0.1/eindex/")
	_, err := execute(t, "calibrate", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRunServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, server, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
