package ocr

import (
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Sample is one labelled captcha reading
type Sample struct {
	Source   string `json:"source"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// Report summarises recognition quality over a labelled set
type Report struct {
	Samples  int      `json:"samples"`
	Exact    int      `json:"exact"`
	Accuracy float64  `json:"accuracy"`
	CER      float64  `json:"character_error_rate"`
	WER      float64  `json:"word_error_rate"`
	Misses   []Sample `json:"misses,omitempty"`
}

// Evaluate scores readings against their labels. Each captcha counts as one
// word for WER; CER is the summed edit distance over the summed label length.
func Evaluate(samples []Sample) Report {
	report := Report{Samples: len(samples)}
	if len(samples) == 0 {
		return report
	}

	var distance, chars int
	reference := make([]string, 0, len(samples))
	candidate := make([]string, 0, len(samples))
	for _, s := range samples {
		expected := strings.TrimSpace(s.Expected)
		got := strings.TrimSpace(s.Got)
		if expected == got {
			report.Exact++
		} else {
			report.Misses = append(report.Misses, s)
		}
		distance += levenshtein.Distance(expected, got)
		chars += len(expected)
		reference = append(reference, expected)
		candidate = append(candidate, got)
	}

	report.Accuracy = float64(report.Exact) / float64(len(samples))
	if chars > 0 {
		report.CER = float64(distance) / float64(chars)
	}
	report.WER, _ = wer.WER(reference, candidate)
	return report
}
