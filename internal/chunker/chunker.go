package chunker

// Split cuts text into ordered fragments of at most maxSize characters.
// Adjacent fragments share exactly overlap characters, so stripping the
// first overlap characters of every fragment after the first rebuilds
// the input. Cut points prefer, in order: paragraph breaks, line breaks,
// sentence-ending punctuation, spaces, and finally a hard cut.
func Split(text string, maxSize, overlap int) []string {
	if text == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize / 2
	}

	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for {
		if len(runes)-start <= maxSize {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		end := cutPoint(runes, start+overlap, start+maxSize)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}

// cutPoint picks the end index of the next fragment within (min, limit],
// scanning for the largest boundary granularity first. Falls back to a
// hard cut at limit when no boundary exists in the window.
func cutPoint(runes []rune, min, limit int) int {
	// paragraph break
	for i := limit; i > min; i-- {
		if i >= 2 && runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	// line break
	for i := limit; i > min; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	// sentence boundary
	for i := limit; i > min; i-- {
		if i >= 2 && runes[i-1] == ' ' && isSentenceEnd(runes[i-2]) {
			return i
		}
	}
	// word boundary
	for i := limit; i > min; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
