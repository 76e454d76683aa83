package parser

import (
	"bytes"
	"context"
	"strings"

	ooxml "baliance.com/gooxml/document"
	"baliance.com/gooxml/schema/soo/wml"
)

// DOCX extracts body paragraphs followed by table cell paragraphs, one line
// per paragraph.
type DOCX struct{}

func (DOCX) Extract(_ context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", parseFailure("docx", r)
		}
	}()

	doc, err := ooxml.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", parseFailure("docx", err)
	}

	var sb strings.Builder
	seen := make(map[*wml.CT_P]bool)
	writeParagraphs(&sb, seen, doc.Paragraphs())
	for _, table := range doc.Tables() {
		for _, row := range table.Rows() {
			for _, cell := range row.Cells() {
				writeParagraphs(&sb, seen, cell.Paragraphs())
			}
		}
	}
	return sb.String(), nil
}

func writeParagraphs(sb *strings.Builder, seen map[*wml.CT_P]bool, paragraphs []ooxml.Paragraph) {
	for _, p := range paragraphs {
		if seen[p.X()] {
			continue
		}
		seen[p.X()] = true
		for _, r := range p.Runs() {
			sb.WriteString(r.Text())
		}
		sb.WriteString("\n")
	}
}
