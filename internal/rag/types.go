package rag

import "dpia-ai/internal/storage"

// RetrieveRequest is a scoped retrieval query.
type RetrieveRequest struct {
	// Query is embedded and matched against Summary Entries.
	Query string
	// Scope is a hard filter; nothing outside it is ever returned.
	Scope storage.Scope
	// DocumentName optionally narrows retrieval to one document in scope.
	DocumentName string
	// K is the number of blocks wanted. Zero means the retriever default.
	K int
}

// Persona is the writer a model call speaks as.
type Persona struct {
	Role      string `json:"Role"`
	Backstory string `json:"Backstory"`
}

// SynthesisRequest drives one sequential fold over retrieved content.
type SynthesisRequest struct {
	// Prompt is the question or section prompt being answered.
	Prompt string
	// Content is the reranked retrieved content, most relevant first.
	Content []string
	// Background is earlier generated text the answer must build on.
	// Empty means no background.
	Background string
	// Persona speaks the model calls. Zero value uses DefaultPersona.
	Persona Persona
	// ExpectedOutput describes the shape of the answer.
	ExpectedOutput string
}

// RefineRequest is the formatting pass over a synthesized draft.
type RefineRequest struct {
	Prompt         string
	Draft          string
	Content        []string
	Writer         Persona
	Formatter      Persona
	ExpectedOutput string
}
