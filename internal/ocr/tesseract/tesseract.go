// Package tesseract provides the gosseract-backed captcha reader.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/anime-shed/plategate-go/internal/ocr"
)

func init() {
	ocr.Register("tesseract", func(s ocr.Settings) (ocr.Engine, error) {
		opts := DefaultOptions()
		if s.Language != "" {
			opts.Languages = strings.Split(s.Language, "+")
		}
		opts.ConfigFile = s.ConfigFile
		return NewTesseractEngine(opts), nil
	})
}

// Options tune the tesseract client for a single short token
type Options struct {
	Whitelist   string
	PageSegMode gosseract.PageSegMode
	Languages   []string
	ConfigFile  string
	Variables   map[string]string
}

// DefaultOptions reads one upper-case alphanumeric word in English
func DefaultOptions() Options {
	return Options{
		Whitelist:   ocr.CaptchaAlphabet,
		PageSegMode: gosseract.PSM_SINGLE_WORD,
		Languages:   []string{"eng"},
	}
}

// TesseractEngine implements ocr.Engine with one client per call, so it is
// safe to share between workers.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
	options       Options
}

// NewTesseractEngine constructs a Tesseract-backed OCR engine.
func NewTesseractEngine(opts Options) *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient, options: opts}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Options returns the client settings applied on every call
func (e *TesseractEngine) Options() Options { return e.options }

// Recognize runs tesseract over img and returns the trimmed text
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()
	if err := e.configure(c); err != nil {
		return "", err
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (e *TesseractEngine) configure(c *gosseract.Client) error {
	opts := e.options
	if opts.ConfigFile != "" {
		if err := c.SetConfigFile(opts.ConfigFile); err != nil {
			return fmt.Errorf("set config file: %w", err)
		}
	}
	if len(opts.Languages) > 0 {
		if err := c.SetLanguage(opts.Languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			return fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetPageSegMode(opts.PageSegMode); err != nil {
		return fmt.Errorf("set page seg mode: %w", err)
	}
	for k, v := range opts.Variables {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return nil
}
