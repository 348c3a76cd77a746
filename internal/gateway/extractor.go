package gateway

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// TextExtractor pulls the plain text out of a page-oriented document.
type TextExtractor interface {
	ExtractText(locator string) (string, error)
}

// PDFExtractor extracts text from PDF documents, concatenating all pages.
type PDFExtractor struct{}

// NewPDFExtractor creates a new extractor instance.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText implements TextExtractor.
func (e *PDFExtractor) ExtractText(locator string) (string, error) {
	f, r, err := pdf.Open(locator)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF %s: %w", locator, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", locator, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", locator, err)
	}
	return buf.String(), nil
}
