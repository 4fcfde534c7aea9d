package documents

import "time"

type documentResponse struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	DocumentType string     `json:"documentType,omitempty"`
	MimeType     string     `json:"mimeType,omitempty"`
	SizeBytes    int64      `json:"sizeBytes"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type statusError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type statusResponse struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Attempts    int          `json:"attempts"`
	Summary     string       `json:"summary,omitempty"`
	KeyFindings []string     `json:"keyFindings,omitempty"`
	NextSteps   []string     `json:"nextSteps,omitempty"`
	ModelID     string       `json:"modelId,omitempty"`
	Error       *statusError `json:"error,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

type detailResponse struct {
	documentResponse
	Attempts             int          `json:"attempts"`
	ExtractedChars       int          `json:"extractedChars,omitempty"`
	ExtractionMethod     string       `json:"extractionMethod,omitempty"`
	ExtractionConfidence float64      `json:"extractionConfidence,omitempty"`
	Summary              string       `json:"summary,omitempty"`
	KeyFindings          []string     `json:"keyFindings,omitempty"`
	NextSteps            []string     `json:"nextSteps,omitempty"`
	ModelID              string       `json:"modelId,omitempty"`
	TokenCount           int          `json:"tokenCount,omitempty"`
	Error                *statusError `json:"error,omitempty"`
}

// failureMessages maps internal failure codes to the wording users see.
// Raw provider or infrastructure errors never appear here.
var failureMessages = map[string]string{
	FailureStorageUnavailable:      "We could not store your document. Please try again.",
	FailureQuotaExceeded:           "Your plan's document quota has been reached for this period.",
	FailureExtractionFailed:        "We could not read any text from this document.",
	FailureAnalysisRateLimited:     "Analysis is busy right now. Please retry in a few minutes.",
	FailureAnalysisInvalidResponse: "Analysis produced an unusable result. Please retry.",
	FailureAnalysisUnavailable:     "Analysis is temporarily unavailable. Please retry later.",
	FailureRetryLimitExceeded:      "Processing failed after several attempts. Contact support if this persists.",
	FailureInternal:                "Something went wrong while processing this document.",
}

func failureFor(d Document) *statusError {
	if d.Status != StatusFailed {
		return nil
	}
	code := d.FailureCode
	if code == "" {
		code = FailureInternal
	}
	msg, ok := failureMessages[code]
	if !ok {
		msg = failureMessages[FailureInternal]
	}
	return &statusError{Code: code, Message: msg}
}

func toResponse(d Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		FileName:     d.FileName,
		DocumentType: d.DocumentType,
		MimeType:     d.MimeType,
		SizeBytes:    d.SizeBytes,
		Status:       d.Status,
		CreatedAt:    d.CreatedAt,
		CompletedAt:  d.CompletedAt,
	}
}

func toStatusResponse(d Document) statusResponse {
	resp := statusResponse{
		ID:          d.ID,
		Status:      d.Status,
		Attempts:    d.Attempts,
		Error:       failureFor(d),
		CompletedAt: d.CompletedAt,
	}
	if d.Status == StatusCompleted {
		resp.Summary = d.Summary
		resp.KeyFindings = d.KeyFindings
		resp.NextSteps = d.NextSteps
		resp.ModelID = d.ModelID
	}
	return resp
}

func toDetailResponse(d Document) detailResponse {
	resp := detailResponse{
		documentResponse:     toResponse(d),
		Attempts:             d.Attempts,
		ExtractedChars:       d.ExtractedChars,
		ExtractionMethod:     d.ExtractionMethod,
		ExtractionConfidence: d.ExtractionConfidence,
		Error:                failureFor(d),
	}
	if d.Status == StatusCompleted {
		resp.Summary = d.Summary
		resp.KeyFindings = d.KeyFindings
		resp.NextSteps = d.NextSteps
		resp.ModelID = d.ModelID
		resp.TokenCount = d.TokenCount
	}
	return resp
}
