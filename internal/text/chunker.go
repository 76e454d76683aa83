package text

import (
	"strings"

	"docingest/internal/document"
)

// Split cuts text into overlapping windows of at most chunkSize characters.
// Chunk i starts at i*(chunkSize-overlapSize); consecutive chunks share
// exactly overlapSize characters and only the last chunk may be shorter.
// Characters are Unicode code points, so multi-byte text is never cut
// mid-rune. Text without any non-whitespace character yields no chunks.
func Split(text string, chunkSize, overlapSize int) ([]string, error) {
	cfg := document.ProcessingConfig{ChunkSize: chunkSize, OverlapSize: overlapSize}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Whitespace has nothing to search for, so blank text costs no embedding
	// calls and the document completes with zero chunks.
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	total := len(runes)
	step := chunkSize - overlapSize

	chunks := make([]string, 0, Count(total, chunkSize, overlapSize))
	for start := 0; ; start += step {
		end := start + chunkSize
		if end >= total {
			chunks = append(chunks, string(runes[start:total]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Count returns how many chunks Split produces for a text of length
// characters: ceil((length-overlap)/(size-overlap)) when length exceeds the
// chunk size, one when it fits and zero for empty text.
func Count(length, chunkSize, overlapSize int) int {
	if length <= 0 || chunkSize <= 0 || overlapSize < 0 || overlapSize >= chunkSize {
		return 0
	}
	if length <= chunkSize {
		return 1
	}
	step := chunkSize - overlapSize
	return (length - overlapSize + step - 1) / step
}
