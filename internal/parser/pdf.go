package parser

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts page text in page order, pages separated by a blank line.
type PDF struct{}

func (PDF) Extract(ctx context.Context, data []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", parseFailure("pdf", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", parseFailure("pdf", err)
	}

	var (
		sb      strings.Builder
		decoded int
		lastErr error
	)
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable pdf page", "page", i, "error", err)
			lastErr = err
			continue
		}
		decoded++
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(content)
	}
	// A document is readable if at least one page decoded, even to blank text.
	if decoded == 0 && lastErr != nil {
		return "", parseFailure("pdf", lastErr)
	}
	return sb.String(), nil
}
