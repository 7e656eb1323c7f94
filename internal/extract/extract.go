// Package extract pulls plain text out of uploaded document content so the
// local pipeline can skip the remote OCR service.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// pdfMagic is the header every PDF starts with.
var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data looks like a PDF.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Text extracts plain text from document content. PDFs go through the
// content-stream extractor; anything else is treated as UTF-8 text.
func Text(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document content")
	}

	if IsPDF(data) {
		return PDFText(data)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is neither PDF nor valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text content found")
	}
	return text, nil
}
