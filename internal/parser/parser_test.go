package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-rag/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseText(t *testing.T) {
	path := writeFile(t, "notes.txt", "My name is Jane Doe.\nI live in Springfield.")
	text, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "My name is Jane Doe.\nI live in Springfield.", text)
}

func TestParseCSVWithHeaders(t *testing.T) {
	path := writeFile(t, "data.csv", "name,city\nJane,Springfield\nJohn,Shelbyville\n")
	text, err := Parse(path)
	require.NoError(t, err)
	assert.Contains(t, text, "name: Jane, city: Springfield")
	assert.Contains(t, text, "name: John, city: Shelbyville")
}

func TestParseTSV(t *testing.T) {
	path := writeFile(t, "data.tsv", "name\tcity\nJane\tSpringfield\n")
	text, err := Parse(path)
	require.NoError(t, err)
	assert.Contains(t, text, "name: Jane, city: Springfield")
}

func TestParseMarkdownStripsFormatting(t *testing.T) {
	path := writeFile(t, "doc.md", "# Lease\n\nThe rent is **$1200** per month.\n")
	text, err := Parse(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Lease")
	assert.Contains(t, text, "The rent is $1200 per month.")
	assert.NotContains(t, text, "#")
	assert.NotContains(t, text, "**")
}

func TestParseUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "image.png", "not really an image")
	_, err := Parse(path)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestParseLegacyOfficeFormatsRejected(t *testing.T) {
	// .doc and .ppt are OLE containers the zip-based readers cannot
	// open; fail fast instead of surfacing an opaque read error
	for _, name := range []string{"report.doc", "deck.ppt"} {
		path := writeFile(t, name, "\xd0\xcf\x11\xe0old office bytes")
		_, err := Parse(path)
		assert.ErrorIs(t, err, models.ErrUnsupportedFormat, name)
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
