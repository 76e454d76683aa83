package parser

import (
	"bytes"
	"context"
	"strings"
	"testing"

	ooxml "baliance.com/gooxml/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docingest/internal/document"
)

func buildDOCX(t *testing.T, paragraphs []string, cells []string) []byte {
	t.Helper()
	doc := ooxml.New()
	for _, p := range paragraphs {
		doc.AddParagraph().AddRun().AddText(p)
	}
	if len(cells) > 0 {
		row := doc.AddTable().AddRow()
		for _, c := range cells {
			row.AddCell().AddParagraph().AddRun().AddText(c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))
	return buf.Bytes()
}

func TestDOCX_Extract(t *testing.T) {
	data := buildDOCX(t, []string{"First paragraph", "Second paragraph"}, []string{"cell A", "cell B"})

	text, err := DOCX{}.Extract(context.Background(), data)
	require.NoError(t, err)

	assert.Contains(t, text, "First paragraph\nSecond paragraph\n")
	assert.Equal(t, 1, strings.Count(text, "cell A"))
	assert.Contains(t, text, "cell B\n")
	assert.Less(t, strings.Index(text, "Second"), strings.Index(text, "cell A"))
}

func TestDOCX_Extract_Corrupt(t *testing.T) {
	_, err := DOCX{}.Extract(context.Background(), []byte("PK\x03\x04 not really a zip"))
	assert.ErrorIs(t, err, document.ErrParseFailure)

	_, err = DOCX{}.Extract(context.Background(), []byte("plain text"))
	assert.ErrorIs(t, err, document.ErrParseFailure)
}
