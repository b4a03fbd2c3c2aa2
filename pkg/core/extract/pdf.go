// Package extract pulls plain text out of uploaded candidate documents.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for documents that are not PDFs.
var ErrUnsupportedFormat = fmt.Errorf("extract: unsupported document format")

// PDFText extracts the plain text of a PDF document.
func PDFText(data []byte) (text string, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", ErrUnsupportedFormat
	}

	// The pdf package panics on some malformed documents instead of
	// returning an error.
	defer func() {
		if v := recover(); v != nil {
			text = ""
			err = fmt.Errorf("extract: malformed pdf: %v", v)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("extract: read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
