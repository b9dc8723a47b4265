package judge

import (
	"fmt"
	"strings"
)

const faithfulnessPrompt = `You are grading a retrieval-augmented answer.
Split the ANSWER into standalone factual statements. For every statement decide
whether it can be inferred from the CONTEXT (verdict 1) or not (verdict 0).
Respond with JSON only: {"statements":[{"statement":"...","verdict":1}]}

CONTEXT:
%s

ANSWER:
%s`

const relevancyPrompt = `Generate %d questions that the ANSWER below would answer, in the
language of the answer. Set noncommittal to 1 if the answer is evasive or says it
does not know, otherwise 0.
Respond with JSON only: {"questions":["..."],"noncommittal":0}

ANSWER:
%s`

const precisionPrompt = `Decide whether the CONTEXT was useful for arriving at the EXPECTED ANSWER
to the QUESTION. Respond with JSON only: {"verdict":1} if useful, {"verdict":0} otherwise.

QUESTION:
%s

EXPECTED ANSWER:
%s

CONTEXT:
%s`

const recallPrompt = `Split the EXPECTED ANSWER into sentences. For every sentence decide whether
it can be attributed to the CONTEXT (attributed 1) or not (attributed 0).
Respond with JSON only: {"sentences":[{"sentence":"...","attributed":1}]}

QUESTION:
%s

CONTEXT:
%s

EXPECTED ANSWER:
%s`

const correctnessPrompt = `Compare the ANSWER with the EXPECTED ANSWER to the QUESTION. Classify the
statements: TP are statements of the answer supported by the expected answer, FP
are statements of the answer not present in the expected answer, FN are
statements of the expected answer missing from the answer.
Respond with JSON only: {"TP":["..."],"FP":["..."],"FN":["..."]}

QUESTION:
%s

ANSWER:
%s

EXPECTED ANSWER:
%s`

func joinContexts(contexts []string) string {
	var sb strings.Builder
	for i, c := range contexts {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, strings.TrimSpace(c))
	}
	return sb.String()
}
