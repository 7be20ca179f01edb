// Package pdfvalidation checks downloaded PDFs before they are sent for
// extraction and pulls their text layer when there is one.
package pdfvalidation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxTextBytes bounds the text layer sent for extraction.
const MaxTextBytes = 400_000

var (
	ErrNotPDF       = errors.New("invalid PDF file: missing PDF header")
	ErrNoPages      = errors.New("PDF has no pages")
	ErrTooManyPages = errors.New("PDF exceeds the page limit")
)

// Info describes a parsed PDF.
type Info struct {
	PageCount int
	// Text is the embedded text layer, empty for scanned documents
	Text string
	// Truncated is set when Text was cut at MaxTextBytes
	Truncated bool
}

// Inspect parses content, enforces maxPages (0 disables the check) and
// collects the text layer.
func Inspect(content []byte, maxPages int) (*Info, error) {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	content = sanitizePDF(content)

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	pages := reader.NumPage()
	if pages == 0 {
		return nil, ErrNoPages
	}
	if maxPages > 0 && pages > maxPages {
		return nil, fmt.Errorf("%w: %d pages, maximum is %d", ErrTooManyPages, pages, maxPages)
	}

	text, truncated := textLayer(reader, pages)
	return &Info{PageCount: pages, Text: text, Truncated: truncated}, nil
}

// textLayer is best effort; pages the parser chokes on are skipped.
func textLayer(reader *pdf.Reader, pages int) (string, bool) {
	var b strings.Builder
	for i := 1; i <= pages && b.Len() <= MaxTextBytes; i++ {
		text := pageText(reader, i)
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	out := strings.TrimSpace(b.String())
	truncated := len(out) > MaxTextBytes
	if truncated {
		out = out[:MaxTextBytes]
	}
	return strings.ToValidUTF8(out, ""), truncated
}

func pageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

// sanitizePDF removes trailing garbage data from PDFs
func sanitizePDF(content []byte) []byte {
	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)
	if lastEOF == -1 {
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}
	return content[:pdfEnd]
}
