package extractor

import (
	"path/filepath"
	"strings"
)

// Document is an uploaded file as received from the transport layer.
// It lives only for the duration of one ingestion call.
type Document struct {
	Name string
	Data []byte
}

type Format string

const (
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

var supportedFormats = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".txt":  FormatText,
	".md":   FormatMarkdown,
}

// DetectFormat resolves the declared extension of name. ok is false for anything
// outside pdf/docx/txt/md.
func DetectFormat(name string) (Format, bool) {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(strings.TrimSpace(name))))
	f, ok := supportedFormats[ext]
	return f, ok
}

// SupportedExtensions lists accepted extensions, for error messages.
func SupportedExtensions() []string {
	return []string{"pdf", "docx", "txt", "md"}
}
