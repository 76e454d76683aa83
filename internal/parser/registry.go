package parser

import (
	"context"
	"fmt"
	"mime"
	"slices"
	"strings"

	"docingest/internal/document"
)

const (
	MIMEPDF      = "application/pdf"
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEDoc      = "application/msword"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// TextExtractor turns the raw bytes of one file format into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry dispatches extraction by MIME type. It is populated before use
// and only read afterwards, so lookups need no locking.
type Registry struct {
	extractors map[string]TextExtractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]TextExtractor)}
}

// Default returns a registry with every supported document format.
func Default() *Registry {
	r := NewRegistry()
	r.Register(MIMEPDF, PDF{})
	r.Register(MIMEPlain, PlainText{})
	r.Register(MIMEMarkdown, PlainText{})
	r.Register(MIMEDocx, DOCX{})
	r.Register(MIMEDoc, DOC{})
	return r
}

func (r *Registry) Register(mimeType string, e TextExtractor) {
	r.extractors[Normalize(mimeType)] = e
}

func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.extractors[Normalize(mimeType)]
	return ok
}

// Types lists the registered MIME types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func (r *Registry) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	e, ok := r.extractors[Normalize(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %q", document.ErrUnsupportedFormat, mimeType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.Extract(ctx, data)
}

// Normalize strips MIME parameters and lower-cases the media type, so
// "Text/Plain; charset=utf-8" and "text/plain" select the same extractor.
func Normalize(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt, _, _ = strings.Cut(mimeType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func parseFailure(format string, cause any) error {
	return fmt.Errorf("%w: %s: %v", document.ErrParseFailure, format, cause)
}
