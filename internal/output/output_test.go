package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plategate-go/internal/pool"
	"github.com/anime-shed/plategate-go/pkg/models"
)

func sampleReport() *pool.Report {
	return &pool.Report{
		Canton: models.CantonZurich,
		Plates: []int{5, 6, 7},
		Owners: map[int][]models.Owner{
			7: {{Type: "Halter", Name: "Muster Hans", Street: "Bahnhofstrasse 1", City: "8001 Zürich"}},
			5: {
				{Type: "Halter", Name: "Auto AG", Street: "Industriestrasse 9", City: "6300 Zug"},
				{Type: "Leasing", Name: "Bank AG", Street: "Paradeplatz 8", City: "8001 Zürich"},
			},
			6: {},
		},
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	report := sampleReport()
	require.NoError(t, Write(&buf, report.Canton, report.Results()))

	want := "=== ZH-5 ===\n" +
		"Halter\nAuto AG\nIndustriestrasse 9\n6300 Zug\n\n" +
		"Leasing\nBank AG\nParadeplatz 8\n8001 Zürich\n\n" +
		"\n" +
		"=== ZH-6 ===\n" +
		"\n" +
		"=== ZH-7 ===\n" +
		"Halter\nMuster Hans\nBahnhofstrasse 1\n8001 Zürich\n\n" +
		"\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, want, string(Render(report)))
}

func TestRange(t *testing.T) {
	assert.Equal(t, "ZH-5", Range(models.CantonZurich, []int{5}))
	assert.Equal(t, "AG-1 to AG-3", Range(models.CantonAargau, []int{1, 2, 3}))
	assert.Equal(t, "LU", Range(models.CantonLucerne, nil))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "queried ZH-5 to ZH-7, found 3 vehicle owners, dumped owner data to results.txt",
		Summary(sampleReport(), "results.txt"))

	ownerless := &pool.Report{Canton: models.CantonZug, Plates: []int{1}, Owners: map[int][]models.Owner{1: {}}}
	assert.Equal(t, "queried ZG-1, found 0 vehicle owners, dumped owner data to results.txt", Summary(ownerless, "results.txt"))

	empty := &pool.Report{Canton: models.CantonZug, Owners: map[int][]models.Owner{}}
	assert.Equal(t, "sorry, no vehicle owners found", Summary(empty, "results.txt"))
}
