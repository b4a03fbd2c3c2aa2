package extract

import (
	"errors"
	"testing"
)

func TestPDFText_RejectsNonPDF(t *testing.T) {
	t.Parallel()

	_, err := PDFText([]byte("plain text resume"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestPDFText_RejectsTruncatedPDF(t *testing.T) {
	t.Parallel()

	// Valid magic bytes but no cross-reference table.
	if _, err := PDFText([]byte("%PDF-1.7\n")); err == nil {
		t.Fatal("expected error for truncated pdf")
	}
}
