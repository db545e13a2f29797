package ocr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// PDFExtractor reads the embedded text layer of a PDF directly, used as a
// fallback OCR path when Tika is unavailable and the blob is already a
// text-layer PDF (not a scanned image requiring real OCR).
type PDFExtractor struct{}

// ExtractText implements domain.OCRProvider. mimeType is ignored beyond the
// caller's decision to route here; every call is treated as PDF bytes.
// Corrupt PDFs can panic deep inside the zlib decoder; recover so one bad
// artifact fails its own job instead of taking the worker down.
func (PDFExtractor) ExtractText(ctx domain.Context, mimeType string, data []byte) (result domain.OCRResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = domain.OCRResult{}, fmt.Errorf("%w: panic during pdf extraction: %v", domain.ErrBlobNotFound, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("%w: %v", domain.ErrBlobNotFound, err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return domain.OCRResult{Text: strings.TrimSpace(sb.String())}, nil
}
