package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragserver/internal/ragerr"
)

// pdfText concatenates the plain text of every page in reading order. Pages
// that fail to extract (corrupt content streams, image-only scans) are
// skipped; the whole document only fails if no page yields text.
func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "opening PDF", err)
	}

	var out strings.Builder
	pages := 0
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if pages > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(text)
		pages++
	}

	if pages == 0 {
		return "", ragerr.New(ragerr.ExtractionFailed, fmt.Sprintf("no extractable text in %d page(s)", r.NumPage()))
	}
	return out.String(), nil
}
