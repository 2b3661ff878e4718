package tool

import "fmt"

// RegisterIllustrative wires a handful of stand-in tools into r: the concrete
// web search, summarization and document retrieval *implementations* are
// explicitly out of scope (spec.md §1) — these exist so the registry,
// whitelist and tool-loop mechanics have something real to dispatch against
// in tests and the reference server.
func RegisterIllustrative(r *Registry) {
	r.Register(NewFunctionTool(
		"web_search",
		"Search the web for information relevant to a query and return a short list of results.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string", "description": "Search query"}},
			"required":   []string{"query"},
		},
		func(_ *CallContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			return map[string]any{
				"query": query,
				"results": []map[string]any{
					{"title": fmt.Sprintf("Result for %q", query), "snippet": "stub result; no real network call is performed"},
				},
			}, nil
		},
	))

	r.Register(NewFunctionTool(
		"summarize",
		"Summarize the provided text into a shorter form.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string", "description": "Text to summarize"}},
			"required":   []string{"text"},
		},
		func(_ *CallContext, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			const max = 280
			if len(text) > max {
				text = text[:max] + "..."
			}
			return map[string]any{"summary": text}, nil
		},
	))

	r.Register(NewFunctionTool(
		"document_retrieval",
		"Retrieve stored documents or prior results relevant to a query.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Retrieval query"},
				"limit": map[string]any{"type": "integer", "description": "Maximum documents to return"},
			},
			"required": []string{"query"},
		},
		func(_ *CallContext, args map[string]any) (any, error) {
			return map[string]any{"documents": []string{}, "note": "document store not attached to this tool instance"}, nil
		},
	))
}
