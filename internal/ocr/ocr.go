package ocr

import "context"

// PageResult is the recognized text of one page image plus a confidence in
// the [0,1] range.
type PageResult struct {
	Text       string
	Confidence float64
}

// Engine turns one rendered page image into text. Implementations receive
// encoded image bytes (JPEG or PNG) and their MIME type.
type Engine interface {
	RecognizePage(ctx context.Context, image []byte, mimeType string) (PageResult, error)
}
