package service

// DefaultChunkWidth is the fixed chunk width in runes.
const DefaultChunkWidth = 1500

// ChunkText splits normalized text into consecutive fixed-width slices,
// measured in runes. Concatenating the chunks in order reconstructs the
// input exactly. Empty text yields exactly one empty chunk, never zero: a
// page always produces at least one index entry.
func ChunkText(text string, width int) []string {
	if width <= 0 {
		width = DefaultChunkWidth
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}

	chunks := make([]string, 0, (len(runes)+width-1)/width)
	for start := 0; start < len(runes); start += width {
		end := start + width
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
