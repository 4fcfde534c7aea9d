package ocr

import "unicode"

// EstimateConfidence scores recognized text by the share of characters that
// look like real language. Vision models do not report a confidence, so this
// heuristic stands in: empty output scores zero, clean prose scores near one.
// Control runes, replacement characters and other symbols count against the
// score, so mangled output lands low.
func EstimateConfidence(text string) float64 {
	if len(text) == 0 {
		return 0
	}
	var good, total int
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			good++
		case unicode.IsSpace(r), unicode.IsPunct(r):
			good++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
