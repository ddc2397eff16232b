package extract

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"ragserver/internal/ragerr"
)

// plainText decodes plain text or Markdown as UTF-8, falling back to
// Latin-1 when the bytes aren't valid UTF-8 (common in exported .txt files).
func plainText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ragerr.New(ragerr.ExtractionFailed, "empty file")
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "decoding text", err)
	}
	return string(decoded), nil
}
