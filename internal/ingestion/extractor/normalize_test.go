package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/rubric-backend/internal/platform/apierr"
)

func createTestDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, _ = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, _ = doc.Write([]byte(body.String()))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// createTestPDF assembles a single-page PDF with a correct xref table.
func createTestPDF(t *testing.T, text string) []byte {
	t.Helper()
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	n := NewNormalizer(nil)
	for _, name := range []string{"slides.pptx", "image.png", "noext", ""} {
		_, err := n.Normalize(context.Background(), Document{Name: name, Data: []byte("x")})
		require.Error(t, err, name)
		assert.True(t, apierr.Is(err, apierr.KindUnsupportedFormat), name)
	}
}

func TestNormalize_EmptyDocumentYieldsEmptyString(t *testing.T) {
	n := NewNormalizer(nil)
	for _, name := range []string{"a.pdf", "a.docx", "a.txt", "a.md", "UPPER.PDF"} {
		got, err := n.Normalize(context.Background(), Document{Name: name})
		require.NoError(t, err, name)
		assert.Equal(t, "", got, name)
	}
}

func TestNormalize_TextPreservesNewlinesAndTrims(t *testing.T) {
	n := NewNormalizer(nil)
	got, err := n.Normalize(context.Background(), Document{
		Name: "lesson.md",
		Data: []byte("\r\n  # Greetings\r\nHello, how are you?\n\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, "# Greetings\nHello, how are you?", got)
}

func TestNormalize_InvalidUTF8IsReplaced(t *testing.T) {
	n := NewNormalizer(nil)
	got, err := n.Normalize(context.Background(), Document{Name: "a.txt", Data: []byte("ok\xffok")})
	require.NoError(t, err)
	assert.Equal(t, "ok ok", got)
}

func TestNormalize_DOCXParagraphsJoinedByNewline(t *testing.T) {
	n := NewNormalizer(nil)
	data := createTestDOCX(t, "Lesson 1", "Greetings and introductions.", "Lesson 2", "Asking for directions.")

	got, err := n.Normalize(context.Background(), Document{Name: "book.docx", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "Lesson 1\nGreetings and introductions.\nLesson 2\nAsking for directions.", got)
}

func TestNormalize_DOCXWithoutTextFails(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize(context.Background(), Document{Name: "blank.docx", Data: createTestDOCX(t)})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindExtractionFailed))
}

func TestNormalize_CorruptDOCXFails(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize(context.Background(), Document{Name: "broken.docx", Data: []byte("not a zip")})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindExtractionFailed))
}

func TestNormalize_PDFWithoutHeaderFails(t *testing.T) {
	n := NewNormalizer(nil)
	_, err := n.Normalize(context.Background(), Document{Name: "fake.pdf", Data: []byte("hello")})
	require.Error(t, err)
	assert.True(t, apierr.Is(err, apierr.KindExtractionFailed))
}

func TestNormalize_PDFText(t *testing.T) {
	n := NewNormalizer(nil)
	got, err := n.Normalize(context.Background(), Document{Name: "lesson.pdf", Data: createTestPDF(t, "Greetings")})
	require.NoError(t, err)
	assert.Contains(t, got, "Greetings")
}

func TestNormalize_CanceledContext(t *testing.T) {
	n := NewNormalizer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := n.Normalize(ctx, Document{Name: "a.txt", Data: []byte("text")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectFormat(t *testing.T) {
	f, ok := DetectFormat("Book.DOCX")
	require.True(t, ok)
	assert.Equal(t, FormatDOCX, f)

	_, ok = DetectFormat("archive.zip")
	assert.False(t, ok)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\n\tb  c  "))
	assert.Equal(t, "", CollapseWhitespace(" \n\t "))
}
