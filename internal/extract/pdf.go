package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// ValidatePDF confirms the payload is a readable, non-encrypted PDF and
// returns its page count. Library used: github.com/ledongthuc/pdf.
func ValidatePDF(data []byte) (int, error) {
	if len(data) < len(pdfMagic) || !bytes.HasPrefix(data, pdfMagic) {
		return 0, errors.New("not a PDF document")
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("unreadable or encrypted PDF: %w", err)
	}

	pages := reader.NumPage()
	if pages < 1 {
		return 0, errors.New("PDF has no pages")
	}
	return pages, nil
}
