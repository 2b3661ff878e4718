// Package core provides the foundational domain types shared across the
// orchestrator: the polymorphic message Part representation exchanged with
// model providers, a rate limiter bounding the agent runtime's tool loop
// budget, a generic search result shape returned by both the vector store
// gateway and agent memory, and a small typed error taxonomy. It intentionally
// stays free of session, engine or orchestration concerns so it can be
// imported from every layer above it without pulling in their dependencies.
package core
