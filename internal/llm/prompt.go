package llm

import (
	"fmt"
	"strings"

	"github.com/netzinformatique/kbassist/internal/core"
)

// SystemInstruction is the fixed instruction sent with every query.
const SystemInstruction = "You are the internal knowledge base assistant of NETZ Informatique. " +
	"Answer the user's question using only the documents provided in the context. " +
	"If the documents do not contain the answer, say that you could not find it in the knowledge base. " +
	"Keep answers short and factual."

// BuildContext concatenates the retrieved passages into one attributed block,
// in descending similarity order. Each passage stays verbatim.
func BuildContext(hits []core.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	var builder strings.Builder
	for i, hit := range hits {
		fmt.Fprintf(&builder, "Document %d: %s\n\n", i+1, hit.Text)
	}
	return strings.TrimRight(builder.String(), "\n")
}

// BuildUserPrompt combines the assembled context with the user's question.
func BuildUserPrompt(contextBlock, question string) string {
	var builder strings.Builder
	if contextBlock != "" {
		builder.WriteString("Context:\n")
		builder.WriteString(contextBlock)
		builder.WriteString("\n\n")
	} else {
		builder.WriteString("No relevant documents were found in the knowledge base.\n\n")
	}
	builder.WriteString("Question: ")
	builder.WriteString(question)
	return builder.String()
}
