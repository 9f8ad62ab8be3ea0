package report

import (
	"context"
	"strings"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/rag"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

const chatExpectedOutput = "Return a concise and accurate response."

var (
	// ChatPersona answers chat turns over the whole chat scope.
	ChatPersona = rag.Persona{Role: "DPIA assistant", Backstory: "Provides professional responses to user queries about data protection."}
	// DocumentAnalystPersona answers chat turns about one document.
	DocumentAnalystPersona = rag.Persona{Role: "Document Analyst", Backstory: "Summarizes and analyzes documents to provide professional responses to user queries."}
	// ChatFormatterPersona proofreads chat answers.
	ChatFormatterPersona = rag.Persona{Role: "Chat Assistant", Backstory: "Expert in analyzing and proofreading user responses."}
)

// ChatTurn is one user message answered from ingested content.
type ChatTurn struct {
	Scope   storage.Scope `json:"scope"`
	Message string        `json:"message"`
	// DocumentName restricts retrieval to one document.
	DocumentName string `json:"document_name,omitempty"`
}

// Answer runs one chat turn: a single section without template, dependency
// or persona assignment.
func (g *Generator) Answer(ctx context.Context, turn ChatTurn) (string, error) {
	if strings.TrimSpace(turn.Message) == "" {
		return "", &service.ValidationError{Field: "message", Message: "cannot be empty"}
	}
	if err := turn.Scope.Validate(); err != nil {
		return "", &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger := contextutil.LoggerFromContext(ctx)

	persona := ChatPersona
	if turn.DocumentName != "" {
		persona = DocumentAnalystPersona
	}

	callCtx := context.WithoutCancel(ctx)
	blocks, err := g.retriever.Retrieve(callCtx, rag.RetrieveRequest{
		Query:        turn.Message,
		Scope:        turn.Scope,
		DocumentName: turn.DocumentName,
		K:            g.opts.RetrievalK,
	})
	if err != nil {
		return "", err
	}
	content := g.reranker.Rerank(callCtx, turn.Message, rag.Contents(blocks))

	draft, err := g.synthesizer.Synthesize(ctx, rag.SynthesisRequest{
		Prompt:         turn.Message,
		Content:        content,
		Persona:        persona,
		ExpectedOutput: chatExpectedOutput,
	})
	if err != nil {
		return "", err
	}
	answer, err := g.synthesizer.Refine(ctx, rag.RefineRequest{
		Prompt:         turn.Message,
		Draft:          draft,
		Content:        content,
		Writer:         persona,
		Formatter:      ChatFormatterPersona,
		ExpectedOutput: chatExpectedOutput,
	})
	if err != nil {
		return "", err
	}
	logger.InfoContext(ctx, "chat turn answered", "blocks", len(blocks), "answer_length", len(answer))
	return answer, nil
}
