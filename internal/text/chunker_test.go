package text

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/document"
)

func TestSplit(t *testing.T) {
	t.Run("Short Text Single Chunk", func(t *testing.T) {
		chunks, err := Split("hello world", 100, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"hello world"}, chunks)
	})

	t.Run("Exact Chunk Size", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		chunks, err := Split(text, 100, 10)
		require.NoError(t, err)
		assert.Len(t, chunks, 1)
	})

	t.Run("Empty Text", func(t *testing.T) {
		chunks, err := Split("", 100, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Whitespace Only", func(t *testing.T) {
		chunks, err := Split(" \n\t ", 100, 10)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("No Overlap", func(t *testing.T) {
		chunks, err := Split("abcdefghij", 4, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
	})

	t.Run("With Overlap", func(t *testing.T) {
		chunks, err := Split("abcdefghij", 4, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"abcd", "cdef", "efgh", "ghij"}, chunks)
	})

	t.Run("Multibyte Runes", func(t *testing.T) {
		text := "不支持的文件格式"
		chunks, err := Split(text, 3, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"不支持", "持的文", "文件格", "格式"}, chunks)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c))
		}
	})
}

func TestSplit_InvalidConfig(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"Overlap Equals Size", 10, 10},
		{"Overlap Exceeds Size", 10, 20},
		{"Zero Size", 0, 0},
		{"Negative Overlap", 10, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split("some text", tt.size, tt.overlap)
			assert.ErrorIs(t, err, document.ErrInvalidConfig)
			assert.Nil(t, chunks)
		})
	}
}

func TestSplit_2500Characters(t *testing.T) {
	var sb strings.Builder
	for i := 0; sb.Len() < 2500; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	text := sb.String()

	chunks, err := Split(text, 1000, 200)
	require.NoError(t, err)

	// ceil((2500-200)/800) = 3
	require.Len(t, chunks, 3)
	assert.Equal(t, Count(2500, 1000, 200), len(chunks))
	assert.Equal(t, text[0:1000], chunks[0])
	assert.Equal(t, text[800:1800], chunks[1])
	assert.Equal(t, text[1600:2500], chunks[2])

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-200:], chunks[i][:200], "chunks %d and %d must share 200 chars", i-1, i)
	}
}

func TestSplit_MatchesFormula(t *testing.T) {
	text := strings.Repeat("0123456789", 37) // 370 chars
	L := len(text)

	for _, tc := range []struct{ size, overlap int }{
		{10, 0}, {10, 3}, {50, 49}, {100, 25}, {370, 10}, {400, 100}, {7, 6},
	} {
		chunks, err := Split(text, tc.size, tc.overlap)
		require.NoError(t, err)

		want := 1
		if L > tc.size {
			step := tc.size - tc.overlap
			want = (L - tc.overlap + step - 1) / step
		}
		assert.Len(t, chunks, want, "size=%d overlap=%d", tc.size, tc.overlap)

		step := tc.size - tc.overlap
		for i, c := range chunks {
			start := i * step
			end := start + tc.size
			if end > L {
				end = L
			}
			assert.Equal(t, text[start:end], c, "chunk %d size=%d overlap=%d", i, tc.size, tc.overlap)
		}
	}
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count(0, 10, 2))
	assert.Equal(t, 1, Count(5, 10, 2))
	assert.Equal(t, 1, Count(10, 10, 2))
	assert.Equal(t, 2, Count(11, 10, 2))
	assert.Equal(t, 3, Count(2500, 1000, 200))
	assert.Equal(t, 0, Count(100, 10, 10))
}
