package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

// Normalizer turns an uploaded Document into a single plain-text string.
type Normalizer struct {
	log *logger.Logger
}

func NewNormalizer(log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{log: log.With("service", "Normalizer")}
}

// Normalize dispatches on the declared extension. Newlines are preserved; only
// leading and trailing whitespace is stripped.
func (n *Normalizer) Normalize(ctx context.Context, doc Document) (string, error) {
	format, ok := DetectFormat(doc.Name)
	if !ok {
		return "", apierr.Newf(apierr.KindUnsupportedFormat, "%q: supported extensions are %s",
			doc.Name, strings.Join(SupportedExtensions(), ", "))
	}
	if len(doc.Data) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		var skipped []int
		text, skipped, err = extractPDF(doc.Data)
		if len(skipped) > 0 {
			n.log.Warn("PDF pages without extractable text", "name", doc.Name, "pages", skipped)
		}
	case FormatDOCX:
		text, err = extractDOCX(doc.Data)
	default:
		text = sanitizeUTF8(string(doc.Data))
	}
	if err != nil {
		return "", apierr.New(apierr.KindExtractionFailed, fmt.Sprintf("%s %q", format, doc.Name), err)
	}

	text = strings.TrimSpace(normalizeNewlines(text))
	if text == "" && (format == FormatPDF || format == FormatDOCX) {
		return "", apierr.Newf(apierr.KindExtractionFailed, "%s %q produced no extractable text", format, doc.Name)
	}
	n.log.Debug("Document normalized", "name", doc.Name, "format", string(format), "chars", utf8.RuneCountInString(text))
	return text, nil
}

// CollapseWhitespace folds every whitespace run (including NBSP and newlines) to one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	// a space keeps adjacent words apart
	return strings.ToValidUTF8(s, " ")
}
