package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reassemble joins fragments after dropping the shared overlap prefix of
// every fragment past the first.
func reassemble(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c)
		if i > 0 {
			r = r[overlap:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	text := "The invoice total is $450, due March 1."
	chunks := Split(text, 500, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", 500, 50))
}

func TestSplitRoundTrip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteString("Sentence number one about a lease agreement. ")
		if i%7 == 0 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	for _, overlap := range []int{0, 10, 50} {
		chunks := Split(text, 200, overlap)
		require.Greater(t, len(chunks), 1)
		assert.Equal(t, text, reassemble(chunks, overlap))
	}
}

func TestSplitRespectsMaxSize(t *testing.T) {
	text := strings.Repeat("word and another word. ", 300)
	chunks := Split(text, 150, 30)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 150)
		assert.NotEmpty(t, c)
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("alpha beta gamma. ", 20) // ~360 chars
	text := para + "\n\n" + para
	chunks := Split(text, 500, 0)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0], "\n\n"),
		"first cut should land on the paragraph break, got %q", chunks[0][len(chunks[0])-20:])
}

func TestSplitHardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("x", 1200)
	chunks := Split(text, 500, 50)
	require.Greater(t, len(chunks), 1)
	assert.Equal(t, text, reassemble(chunks, 50))
}

func TestSplitAdjacentOverlapExact(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	overlap := 25
	chunks := Split(text, 180, overlap)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(cur[:overlap]))
	}
}
