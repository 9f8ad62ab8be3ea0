package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/llm"
	"dpia-ai/internal/service"
)

const (
	// DefaultContextWindowTokens matches the num_ctx the generation models run with.
	DefaultContextWindowTokens = 8000
	charsPerToken              = 4
	minChunkChars              = 1000

	// Goal is the standing instruction every writer persona works under.
	Goal = "Please think step by step. " +
		"You have contexts provided as knowledge to pull from, please refer to them as your ONLY knowledge source. " +
		"The contexts may contain texts, images, or tables, or a combination of these. Pay extra attention to the details in images and tables. " +
		"Avoid speculations. Heavily favour knowledge provided in the contexts before falling back to baseline knowledge or other sources. " +
		"Refrain from sharing sensitive data such as names, passwords, or download links. " +
		"With the above in mind, please provide a detailed and professional response to the user query."

	// DefaultExpectedOutput is the answer shape of a free-text section.
	DefaultExpectedOutput = "Return an accurate and coherent response in a professional tone."
)

var (
	// DefaultPersona writes when no step persona was assigned.
	DefaultPersona = Persona{
		Role:      "DPIA assistant",
		Backstory: "An experienced data protection officer who writes data protection impact assessments.",
	}
	// FormatterPersona proofreads synthesized drafts.
	FormatterPersona = Persona{
		Role:      "DPIA report Formatter",
		Backstory: "A professional with experience in DPIA formatting and proofreading.",
	}
)

// ChatModel generates a reply to a conversation.
type ChatModel interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// Sequencer lets a model with a bounded context window answer over retrieved
// content of any length by folding over it chunk by chunk.
type Sequencer struct {
	model        ChatModel
	windowTokens int
}

// NewSequencer creates a Sequencer. windowTokens <= 0 uses DefaultContextWindowTokens.
func NewSequencer(model ChatModel, windowTokens int) *Sequencer {
	if windowTokens <= 0 {
		windowTokens = DefaultContextWindowTokens
	}
	return &Sequencer{model: model, windowTokens: windowTokens}
}

// ChunkSize is the number of content bytes one call may carry next to prompt
// and background. A quarter of the window stays free for the running answer.
func (s *Sequencer) ChunkSize(prompt, background string) int {
	budget := s.windowTokens * charsPerToken
	size := budget - budget/4 - len(prompt) - len(background)
	return max(size, minChunkChars)
}

// Synthesize answers req.Prompt over req.Content. Chunks are processed
// strictly in order; each call sees the answer so far and the next chunk, and
// its reply replaces the answer. Cancellation is observed before each chunk;
// a call already sent runs to completion.
func (s *Sequencer) Synthesize(ctx context.Context, req SynthesisRequest) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	persona := req.Persona
	if persona.Role == "" {
		persona = DefaultPersona
	}
	expected := req.ExpectedOutput
	if expected == "" {
		expected = DefaultExpectedOutput
	}

	chunks := SplitChunks(strings.Join(req.Content, "\n\n"), s.ChunkSize(req.Prompt, req.Background))
	if len(chunks) == 0 {
		// An empty-context answer is still an answer.
		chunks = []string{""}
	}
	logger.InfoContext(ctx, "synthesizing",
		"chunks", len(chunks),
		"content_items", len(req.Content),
		"background_length", len(req.Background),
	)

	var running string
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		messages := []llm.Message{
			{Role: "system", Content: systemMessage(persona)},
			{Role: "user", Content: writingTask(req.Prompt, req.Background, running, chunk, expected)},
		}
		answer, err := s.model.ChatWithMessages(context.WithoutCancel(ctx), messages, llm.ChatParams{})
		if err != nil {
			return "", service.Classify(service.ErrGeneration,
				fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err))
		}
		logger.DebugContext(ctx, "chunk answered", "chunk", i+1, "answer_length", len(answer))
		running = answer
	}
	return running, nil
}

// Refine has the formatter proofread a draft against the content it was
// written from. It must not introduce new facts.
func (s *Sequencer) Refine(ctx context.Context, req RefineRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	formatter := req.Formatter
	if formatter.Role == "" {
		formatter = FormatterPersona
	}
	writer := req.Writer
	if writer.Role == "" {
		writer = DefaultPersona
	}
	expected := req.ExpectedOutput
	if expected == "" {
		expected = DefaultExpectedOutput
	}

	limit := s.ChunkSize(req.Prompt, req.Draft)
	reference := truncateBytes(strings.Join(req.Content, "\n\n"), limit)

	var b strings.Builder
	fmt.Fprintf(&b, "The %s wrote the draft below in answer to the prompt: %s\n\n", writer.Role, req.Prompt)
	fmt.Fprintf(&b, "Draft:\n%s\n\n", req.Draft)
	fmt.Fprintf(&b, "Context the draft was written from:\n%s\n\n", reference)
	b.WriteString("Proofread and format the draft. Correct errors and inconsistencies with the context. ")
	b.WriteString("Do not add facts that are not in the draft or the context. Return only the final text.\n")
	fmt.Fprintf(&b, "Expected output: %s", expected)

	messages := []llm.Message{
		{Role: "system", Content: systemMessage(formatter)},
		{Role: "user", Content: b.String()},
	}
	out, err := s.model.ChatWithMessages(context.WithoutCancel(ctx), messages, llm.ChatParams{})
	if err != nil {
		return "", service.Classify(service.ErrGeneration, fmt.Errorf("refine: %w", err))
	}
	return out, nil
}

func systemMessage(p Persona) string {
	return fmt.Sprintf("You are the %s. %s\n\nYour goal: %s", p.Role, p.Backstory, Goal)
}

// writingTask renders one fold step. Background, when present, is repeated in
// every step so it is never lost when the running answer is rewritten.
func writingTask(prompt, background, running, chunk, expected string) string {
	var b strings.Builder
	if background != "" {
		fmt.Fprintf(&b, "Background information: %s\n", background)
		fmt.Fprintf(&b, "Based on the background information and the provided context: %s\n%s\n", running, chunk)
	} else {
		fmt.Fprintf(&b, "Based on the provided context: %s\n%s\n", running, chunk)
	}
	fmt.Fprintf(&b, "Provide a detailed answer to the prompt: %s.\n", prompt)
	b.WriteString("References and citations are not relevant.\n")
	fmt.Fprintf(&b, "Expected output: %s", expected)
	return b.String()
}

// SplitChunks splits text into pieces of at most size bytes, breaking on
// whitespace where possible and never inside a UTF-8 sequence. Concatenating
// the chunks in order yields the text with break whitespace removed.
func SplitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := strings.LastIndexFunc(text[:size], unicode.IsSpace)
		if cut <= 0 {
			cut = size
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, w := utf8.DecodeRuneInString(text)
				cut = w
			}
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
