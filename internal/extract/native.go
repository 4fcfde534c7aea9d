package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDFNative pulls the embedded text layer out of a PDF, page by page
// with form-feed separators. Returns the total page count alongside.
func extractPDFNative(data []byte, maxPages int) (string, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if maxPages > 0 && pages > maxPages {
		return "", pages, fmt.Errorf("%w: %d pages", ErrTooManyPages, pages)
	}

	var parts []string
	for n := 1; n <= pages; n++ {
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One broken page does not ruin the document.
			continue
		}
		parts = append(parts, strings.TrimSpace(text))
	}
	return strings.TrimSpace(strings.Join(parts, "\f")), pages, nil
}

// extractDOCX reads word/document.xml out of the zip container and strips
// the markup, keeping paragraph boundaries as newlines.
func extractDOCX(data []byte) (Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open docx: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return Result{}, fmt.Errorf("open document.xml: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return Result{}, fmt.Errorf("docx missing document.xml")
	}
	defer docXML.Close()

	var (
		sb      strings.Builder
		decoder = xml.NewDecoder(docXML)
		inText  bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{Text: text, Method: MethodNative, Confidence: 1.0, Pages: 1}, nil
}

// normalizeMimeType resolves the effective type from the sniffed MIME type
// with the file extension as a tiebreaker, since DOCX sniffs as plain zip.
func normalizeMimeType(mimeType, fileName string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	ext := strings.ToLower(filepath.Ext(fileName))

	switch mt {
	case "application/pdf":
		return "application/pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return mt
	case "application/zip", "application/octet-stream", "":
		if ext == ".docx" {
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		}
		if ext == ".pdf" {
			return "application/pdf"
		}
		if ext == ".txt" {
			return "text/plain"
		}
	}
	if strings.HasPrefix(mt, "text/") {
		return "text/plain"
	}
	return mt
}
