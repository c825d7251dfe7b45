package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anime-shed/plategate-go/internal/captcha"
)

var sampleExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true}

// LabelFromFilename derives the expected text from a sample file name.
// "K7P2Q.png" and "K7P2Q_03.gif" are both labelled K7P2Q.
func LabelFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if i := strings.IndexByte(base, '_'); i >= 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}

// Calibrate runs every labelled captcha in dir through the denoiser and engine
func Calibrate(ctx context.Context, engine Engine, denoiser *captcha.Denoiser, dir string) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, fmt.Errorf("read sample dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var samples []Sample
	for _, entry := range entries {
		if entry.IsDir() || !sampleExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		path := filepath.Join(dir, entry.Name())
		got, err := readSample(ctx, engine, denoiser, path)
		if err != nil {
			return Report{}, err
		}
		samples = append(samples, Sample{Source: entry.Name(), Expected: LabelFromFilename(entry.Name()), Got: got})
	}
	return Evaluate(samples), nil
}

func readSample(ctx context.Context, engine Engine, denoiser *captcha.Denoiser, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open sample: %w", err)
	}
	defer f.Close()

	raw, err := captcha.Decode(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	text, err := engine.Recognize(ctx, denoiser.Denoise(raw).Gray())
	if err != nil {
		// an engine failure is an unreadable sample, scored as a miss
		return "", nil
	}
	return strings.TrimSpace(text), nil
}
