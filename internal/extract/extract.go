package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"claimdocs-backend/internal/ocr"
	"claimdocs-backend/internal/shared/telemetry"
)

var (
	// ErrNoText means neither native extraction nor OCR produced usable text.
	ErrNoText = errors.New("no text could be extracted")
	// ErrUnsupportedType means the file format is not one we can read.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrTooManyPages means the document exceeds the page ceiling.
	ErrTooManyPages = errors.New("document has too many pages")
)

// Methods recorded on the document after a successful extraction.
const (
	MethodNative = "native"
	MethodOCR    = "ocr"
)

// minNativeChars is the threshold under which a native extraction is treated
// as a scan (image-only PDF) and handed to OCR.
const minNativeChars = 100

// Result is the outcome of one extraction. Text lives only in worker memory;
// callers persist the metadata, never the text.
type Result struct {
	Text       string
	Method     string
	Confidence float64
	Pages      int
}

// Extractor pulls text out of uploaded documents, native readers first and
// OCR as the fallback for scanned PDFs.
type Extractor struct {
	OCR      ocr.Engine
	MaxPages int
}

// Extract reads the whole document and returns its text. mimeType is the
// sniffed type recorded at upload.
func (e *Extractor) Extract(ctx context.Context, r io.Reader, mimeType, fileName string) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}

	switch normalizeMimeType(mimeType, fileName) {
	case "application/pdf":
		return e.extractPDF(ctx, data)
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data)
	case "text/plain":
		text := strings.TrimSpace(string(data))
		if text == "" {
			return Result{}, ErrNoText
		}
		return Result{Text: text, Method: MethodNative, Confidence: 1.0, Pages: 1}, nil
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	native, pages, nerr := extractPDFNative(data, e.MaxPages)
	if nerr == nil && len(native) >= minNativeChars {
		return Result{Text: native, Method: MethodNative, Confidence: 1.0, Pages: pages}, nil
	}

	if e.OCR == nil {
		if nerr != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrNoText, nerr)
		}
		if native == "" {
			return Result{}, ErrNoText
		}
		// Thin but real text and no OCR configured; take what we have.
		return Result{Text: native, Method: MethodNative, Confidence: 1.0, Pages: pages}, nil
	}

	if nerr != nil {
		telemetry.Warn("native pdf extraction failed, falling back to ocr", map[string]any{
			"error": nerr.Error(),
		})
	}
	res, oerr := e.ocrPDF(ctx, data)
	if oerr != nil {
		if nerr == nil && native != "" {
			// OCR broke but native gave at least something usable.
			return Result{Text: native, Method: MethodNative, Confidence: 1.0, Pages: pages}, nil
		}
		return Result{}, oerr
	}
	return res, nil
}

func (e *Extractor) ocrPDF(ctx context.Context, data []byte) (Result, error) {
	images, err := renderPDFPages(data, e.MaxPages)
	if err != nil {
		return Result{}, fmt.Errorf("render pages: %w", err)
	}

	var (
		parts []string
		total float64
	)
	for i, img := range images {
		page, err := e.OCR.RecognizePage(ctx, img, "image/jpeg")
		if err != nil {
			return Result{}, fmt.Errorf("ocr page %d: %w", i+1, err)
		}
		parts = append(parts, page.Text)
		total += page.Confidence
	}

	text := strings.TrimSpace(strings.Join(parts, "\f"))
	if text == "" {
		return Result{}, ErrNoText
	}
	return Result{
		Text:       text,
		Method:     MethodOCR,
		Confidence: total / float64(len(images)),
		Pages:      len(images),
	}, nil
}
