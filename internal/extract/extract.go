// Package extract turns uploaded file bytes into plain text, the first
// stage of the ingest pipeline. One extractor per supported content
// type; an unrecognized type or an extractor that yields no text both
// surface as ragerr.ExtractionFailed.
package extract

import (
	"fmt"
	"strings"

	"ragserver/internal/ragerr"
)

// Text extracts plain text from raw file bytes, dispatching on contentType.
func Text(filename, contentType string, data []byte) (string, error) {
	switch {
	case strings.Contains(contentType, "pdf"):
		return pdfText(data)
	case strings.Contains(contentType, "officedocument.wordprocessingml"):
		return docxText(data)
	case strings.Contains(contentType, "text/"), strings.HasSuffix(strings.ToLower(filename), ".md"), strings.HasSuffix(strings.ToLower(filename), ".txt"):
		return plainText(data)
	default:
		return "", ragerr.New(ragerr.ExtractionFailed, fmt.Sprintf("unsupported content type %q", contentType))
	}
}
