// Package ocr defines the recognition contract used by the captcha pipeline
// and offline tooling to measure how well an engine reads portal captchas.
package ocr

import (
	"context"
	"image"
)

// CaptchaAlphabet is the character set the portal renders
const CaptchaAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Engine turns a denoised captcha into a raw text reading. Callers treat any
// error as an unreadable image rather than a failure.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// EngineFunc adapts a plain function to Engine
type EngineFunc func(ctx context.Context, img image.Image) (string, error)

func (f EngineFunc) Name() string { return "func" }

func (f EngineFunc) Recognize(ctx context.Context, img image.Image) (string, error) {
	return f(ctx, img)
}
