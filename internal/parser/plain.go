package parser

import (
	"bytes"
	"context"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText handles text/plain and text/markdown. Markdown is indexed as
// written; markup is meaningful context for the embedding model.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", parseFailure("text", "content is not valid UTF-8")
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", parseFailure("text", "content contains NUL bytes")
	}
	return string(data), nil
}
