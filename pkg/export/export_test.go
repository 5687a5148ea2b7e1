package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:       "Datasets",
		Headers:     []string{"Name", "Size", "Users"},
		Rows:        [][]string{{"sales.csv", "1.5 KB", "2"}, {"crops, 2024", "0 Bytes", "0"}},
		GeneratedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "Name,Size,Users\nsales.csv,1.5 KB,2\n\"crops, 2024\",0 Bytes,0\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	table := sampleTable()
	table.Rows = append(table.Rows, []string{"only-one"})
	_, err := NewCSVExporter().Render(table)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	table := sampleTable()
	table.Widths = []float64{3, 1, 1}
	for i := 0; i < 60; i++ {
		table.Rows = append(table.Rows, []string{"a very long dataset name that will not fit inside its column at all", "1 KB", "1"})
	}
	out, err := NewPDFExporter().Render(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Table{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())
	assert.IsType(t, &PDFExporter{}, RendererFor(f))

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}
