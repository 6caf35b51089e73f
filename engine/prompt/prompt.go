// Package prompt renders retrieved ticket texts and a new customer message
// into the instruction string handed to the completion service.
package prompt

import (
	"strconv"
	"strings"
)

// ContextBlock renders ticket texts as "- " bullet lines joined by newlines,
// preserving input order. An empty slice yields an empty block, not a
// placeholder sentence.
func ContextBlock(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(t)
	}
	return b.String()
}

// Assemble builds the full prompt from the retrieved context and the new
// message. Pure string construction: same inputs, same output. The message is
// quoted so multi-line or quote-containing messages cannot corrupt the
// template boundaries.
func Assemble(context []string, message string) string {
	var b strings.Builder
	b.WriteString("\n\nHuman: The following are past support tickets from this customer:\n")
	b.WriteString(ContextBlock(context))
	b.WriteString("\nNew message:\n")
	b.WriteString(strconv.Quote(message))
	b.WriteString("\nSummarize the customer's issue in one line.\n\nAssistant:")
	return b.String()
}
