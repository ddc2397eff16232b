package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"ragserver/internal/ragerr"
)

type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paras []docxPara `xml:"p"`
}

type docxPara struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

// docxText reads word/document.xml out of the OOXML zip container and joins
// non-empty paragraphs with a blank line, the way a reader would see them.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "opening DOCX", err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", ragerr.New(ragerr.ExtractionFailed, "word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "opening document.xml", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "reading document.xml", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", ragerr.Wrap(ragerr.ExtractionFailed, "parsing document.xml", err)
	}

	var paragraphs []string
	for _, p := range doc.Body.Paras {
		var sb strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Texts {
				sb.WriteString(t)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	}

	if len(paragraphs) == 0 {
		return "", ragerr.New(ragerr.ExtractionFailed, "no extractable text in DOCX")
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
