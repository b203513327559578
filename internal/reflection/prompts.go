package reflection

import (
	"fmt"
	"strings"

	"selfrag-orchestrator/internal/domain"
)

// contextSeparator joins relevant passages into a single generation context.
const contextSeparator = "\n\n---\n\n"

func joinContext(docs []domain.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Text)
	}
	return strings.TrimSpace(strings.Join(parts, contextSeparator))
}

func directAnswerPrompt(question string) string {
	return fmt.Sprintf(`Answer the question using only your general knowledge.
Do NOT assume access to external documents.
If you are unsure or the answer requires specific sources, say:
'I don't know based on my current knowledge.'

Question:
%s`, question)
}

func generateFromContextPrompt(question, context string) string {
	return fmt.Sprintf(`You are a retrieval-augmented assistant.
Answer the user's question using only the provided context.
If the context does not contain enough information, say:
'%s'
Do not use outside knowledge - rely solely on the context.

Question:
%s

Context:
%s`, FallbackNoRelevantDocument, question, context)
}

func revisePrompt(question, answer, context string) string {
	return fmt.Sprintf(`You are a STRICT reviser.
Your previous answer contained claims not supported by the context.
Rewrite it as a quote-only answer:

FORMAT:
- <direct quote from the CONTEXT>
- <direct quote from the CONTEXT>

Rules:
- Every bullet must be copied verbatim from the CONTEXT.
- Do not add interpretation, qualifiers, or outside knowledge.
- Keep only quotes that help answer the QUESTION.

QUESTION:
%s

PREVIOUS ANSWER:
%s

CONTEXT:
%s`, question, answer, context)
}
