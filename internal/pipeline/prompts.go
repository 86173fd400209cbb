package pipeline

import (
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/internal/store"
)

const formatSystemPrompt = `You convert raw LLM call payloads into readable Markdown.

You receive a JSON array of objects: {"spanId": string, "input": string, "output": string}.
For each object, rewrite input and output as Markdown appropriate to the content:
- JSON payloads become fenced json code blocks
- code becomes fenced code blocks with a language tag when recognizable
- chat transcripts become per-turn sections with bold role headers
- plain prose is lightly formatted (paragraphs, lists where natural)
Do not summarize, translate, or drop content.

Respond with JSON only (no markdown fences):
[{"spanId": "<unchanged>", "formattedInput": "...", "formattedOutput": "..."}, ...]
Keep every spanId exactly as given and return one object per input object.`

const clusterSystemPrompt = `You cluster reviewer feedback about failed LLM responses into failure-mode categories.

You receive one reviewer note per line. Derive a small set of short category
labels (1-3 words each) that covers the distinct failure modes described.
Deduplicate labels; do not invent categories no note supports.

Respond with JSON only (no markdown fences), a non-empty array of strings:
["category one", "category two", ...]`

const assignSystemPrompt = `You assign failure-mode categories to reviewed LLM call spans.

You receive a list of allowed category labels, then reviewer notes. Each note is
followed by a line "rootSpanID: <id>" naming the span it belongs to. Assign each
span every applicable category, choosing only from the allowed labels.

Respond with JSON only (no markdown fences), one object per note:
[{"rootSpanId": "<id>", "categories": ["label", ...]}, ...]`

// clusterUserContent joins raw reviewer notes for the clustering call.
func clusterUserContent(notes []string) string {
	return "Reviewer notes:\n" + strings.Join(notes, "\n")
}

// assignUserContent combines the allowed labels with the id-tagged notes for
// the assignment call.
func assignUserContent(labels []string, notesWithID []string) string {
	return fmt.Sprintf("Allowed categories:\n%s\n\nReviewer notes:\n%s",
		strings.Join(labels, "\n"), strings.Join(notesWithID, "\n\n"))
}

// noteWithSpanID tags a note with the span it annotates, the form the
// assignment prompt expects.
func noteWithSpanID(a store.BadAnnotation) string {
	return a.Note + "\nrootSpanID: " + a.RootSpanID
}
