package extractor

import (
	"bytes"
	"fmt"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// extractPDF reads text page by page. A page that fails to decode contributes an
// empty string; its 1-based number is reported in skipped.
func extractPDF(data []byte) (text string, skipped []int, err error) {
	if !isPDFHeader(data) {
		return "", nil, fmt.Errorf("missing %%PDF header")
	}
	r, err := openPDF(data)
	if err != nil {
		return "", nil, fmt.Errorf("pdf reader: %w", err)
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		pageText, ok := pageText(r, i)
		if !ok {
			skipped = append(skipped, i)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), skipped, nil
}

func openPDF(data []byte) (r *pdf.Reader, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(r *pdf.Reader, num int) (text string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			text, ok = "", false
		}
	}()
	p := r.Page(num)
	if p.V.IsNull() {
		return "", false
	}
	s, err := p.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}
