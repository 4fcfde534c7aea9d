package openai

import (
	"fmt"
	"strings"

	"claimdocs-backend/internal/llm"
)

const systemPrompt = `You are an assistant that reviews insurance and claims paperwork for consumers.
Given the text of one document, respond with a single JSON object of the shape:
{"summary": string, "keyFindings": [string], "nextSteps": [string]}
The summary is two or three plain-language sentences. Key findings are concrete
facts from the document (amounts, dates, parties, deadlines). Next steps are
actions the document's owner should consider. Never invent facts that are not
in the text.`

func userPrompt(in llm.AnalyzeInput) string {
	var b strings.Builder
	if in.DocumentType != "" {
		fmt.Fprintf(&b, "Document type declared by the owner: %s\n", in.DocumentType)
	}
	if in.FileName != "" {
		fmt.Fprintf(&b, "File name: %s\n", in.FileName)
	}
	b.WriteString("Document text:\n---\n")
	b.WriteString(in.Text)
	b.WriteString("\n---")
	return b.String()
}
