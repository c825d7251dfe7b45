// Package output renders lookup reports in the plain text result format.
package output

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/anime-shed/plategate-go/internal/pool"
	"github.com/anime-shed/plategate-go/pkg/models"
)

// Write emits one block per plate in requested order. Each block is a header,
// every owner followed by a blank line, and a closing blank line.
func Write(w io.Writer, canton models.Canton, results []models.LookupResult) error {
	bw := bufio.NewWriter(w)
	for _, result := range results {
		fmt.Fprintf(bw, "=== %s-%d ===\n", canton, result.Plate)
		for _, owner := range result.Owners {
			bw.WriteString(owner.String())
			bw.WriteString("\n")
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

// Render is Write into memory
func Render(report *pool.Report) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, report.Canton, report.Results())
	return buf.Bytes()
}

// Range describes the queried plates, "ZH-5" or "ZH-5 to ZH-9"
func Range(canton models.Canton, plates []int) string {
	switch len(plates) {
	case 0:
		return string(canton)
	case 1:
		return fmt.Sprintf("%s-%d", canton, plates[0])
	default:
		return fmt.Sprintf("%s-%d to %s-%d", canton, plates[0], canton, plates[len(plates)-1])
	}
}

// Summary is the closing message of a run. A run without results has nothing
// to dump; plates without owners still count as results.
func Summary(report *pool.Report, destination string) string {
	if len(report.Owners) == 0 {
		return "sorry, no vehicle owners found"
	}
	return fmt.Sprintf("queried %s, found %d vehicle owners, dumped owner data to %s",
		Range(report.Canton, report.Plates), report.OwnerCount(), destination)
}
