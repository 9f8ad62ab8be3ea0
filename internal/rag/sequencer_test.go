package rag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"dpia-ai/internal/llm"
	"dpia-ai/internal/service"
)

// foldModel appends the marker words of the chunk it sees (every word but the
// "x" filler) to the running answer, so the final answer records the order
// chunks were visited in.
type foldModel struct {
	mu      sync.Mutex
	calls   [][]llm.Message
	ctxs    []context.Context
	replies []string
	err     error
	hook    func(call int)
}

func (m *foldModel) ChatWithMessages(ctx context.Context, messages []llm.Message, _ llm.ChatParams) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.ctxs = append(m.ctxs, ctx)
	n := len(m.calls)
	m.mu.Unlock()
	if m.hook != nil {
		m.hook(n)
	}
	if m.err != nil {
		return "", m.err
	}

	running, chunk := parseFoldStep(messages[len(messages)-1].Content)
	answer := running
	for _, w := range strings.Fields(chunk) {
		if w == "x" {
			continue
		}
		if answer != "" {
			answer += ","
		}
		answer += w
	}

	m.mu.Lock()
	m.replies = append(m.replies, answer)
	m.mu.Unlock()
	return answer, nil
}

func (m *foldModel) userMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c[len(c)-1].Content
	}
	return out
}

// parseFoldStep extracts the running answer and chunk from a writing task.
func parseFoldStep(msg string) (running, chunk string) {
	_, rest, ok := strings.Cut(msg, "provided context: ")
	if !ok {
		return "", ""
	}
	body, _, _ := strings.Cut(rest, "\nProvide a detailed answer")
	running, chunk, _ = strings.Cut(body, "\n")
	return running, chunk
}

func TestSequencer_ChunkSize(t *testing.T) {
	s := NewSequencer(nil, 1000)
	if got := s.ChunkSize("", ""); got != 3000 {
		t.Errorf("ChunkSize() = %d, want 3000", got)
	}
	if got := s.ChunkSize(strings.Repeat("p", 500), strings.Repeat("b", 500)); got != 2000 {
		t.Errorf("ChunkSize() = %d, want 2000", got)
	}
	if got := s.ChunkSize(strings.Repeat("p", 5000), ""); got != minChunkChars {
		t.Errorf("ChunkSize() = %d, want floor %d", got, minChunkChars)
	}
	if got := NewSequencer(nil, 0).ChunkSize("", ""); got != DefaultContextWindowTokens*3 {
		t.Errorf("default ChunkSize() = %d, want %d", got, DefaultContextWindowTokens*3)
	}
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{name: "empty", text: "  ", size: 10, want: nil},
		{name: "fits", text: "one two", size: 10, want: []string{"one two"}},
		{name: "breaks on whitespace", text: "aaa bbb ccc", size: 8, want: []string{"aaa bbb", "ccc"}},
		{name: "long word is cut", text: "abcdefghij", size: 4, want: []string{"abcd", "efgh", "ij"}},
		{name: "no size limit", text: "a b", size: 0, want: []string{"a b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitChunks(tt.text, tt.size); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitChunks() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitChunks_UTF8(t *testing.T) {
	text := strings.Repeat("ü", 10)
	for _, chunk := range SplitChunks(text, 3) {
		if !utf8.ValidString(chunk) {
			t.Fatalf("SplitChunks() produced invalid UTF-8 chunk %q", chunk)
		}
		if len(chunk) > 3 {
			t.Fatalf("SplitChunks() chunk %q longer than 3 bytes", chunk)
		}
	}
	if got := strings.Join(SplitChunks(text, 3), ""); got != text {
		t.Errorf("SplitChunks() lost content: %q", got)
	}
}

// longContent returns n paragraphs that each fill one chunk.
func longContent(words ...string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w + strings.Repeat(" x", 600)
	}
	return out
}

func TestSequencer_Synthesize_FoldsInOrder(t *testing.T) {
	model := &foldModel{}
	s := NewSequencer(model, 400) // chunks of 1000 bytes

	got, err := s.Synthesize(context.Background(), SynthesisRequest{
		Prompt:  "describe",
		Content: longContent("alpha", "beta", "gamma"),
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got != "alpha,beta,gamma" {
		t.Fatalf("Synthesize() = %q, want alpha,beta,gamma", got)
	}

	msgs := model.userMessages()
	if len(msgs) < 3 {
		t.Fatalf("model called %d times, want at least 3", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if running, _ := parseFoldStep(msgs[i]); running != model.replies[i-1] {
			t.Errorf("call %d running answer = %q, want %q", i, running, model.replies[i-1])
		}
	}
}

func TestSequencer_Synthesize_OrderMatters(t *testing.T) {
	s := NewSequencer(&foldModel{}, 400)
	forward, err := s.Synthesize(context.Background(), SynthesisRequest{Prompt: "p", Content: longContent("one", "two")})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	reversed, err := s.Synthesize(context.Background(), SynthesisRequest{Prompt: "p", Content: longContent("two", "one")})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if forward == reversed {
		t.Errorf("Synthesize() gave %q for both orders", forward)
	}
}

func TestSequencer_Synthesize_EmptyContent(t *testing.T) {
	model := &foldModel{}
	s := NewSequencer(model, 0)
	if _, err := s.Synthesize(context.Background(), SynthesisRequest{Prompt: "what is stored?"}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if n := len(model.userMessages()); n != 1 {
		t.Errorf("model called %d times, want 1", n)
	}
}

func TestSequencer_Synthesize_Background(t *testing.T) {
	model := &foldModel{}
	s := NewSequencer(model, 400)
	background := "Risk 1: unauthorised access."
	_, err := s.Synthesize(context.Background(), SynthesisRequest{
		Prompt:     "mitigate",
		Content:    longContent("a", "b"),
		Background: background,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	for i, msg := range model.userMessages() {
		if !strings.HasPrefix(msg, "Background information: "+background+"\n") {
			t.Errorf("call %d missing background: %q", i, msg[:min(len(msg), 80)])
		}
	}

	model = &foldModel{}
	s = NewSequencer(model, 0)
	if _, err := s.Synthesize(context.Background(), SynthesisRequest{Prompt: "p", Content: []string{"c"}}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if msg := model.userMessages()[0]; strings.Contains(msg, "Background information") {
		t.Errorf("call without background mentions one: %q", msg)
	}
}

func TestSequencer_Synthesize_PersonaAndExpectedOutput(t *testing.T) {
	model := &foldModel{}
	s := NewSequencer(model, 0)
	_, err := s.Synthesize(context.Background(), SynthesisRequest{
		Prompt:         "p",
		Content:        []string{"c"},
		Persona:        Persona{Role: "Privacy Analyst", Backstory: "Ten years in audits."},
		ExpectedOutput: "A list of risks.",
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	system := model.calls[0][0]
	if system.Role != "system" || !strings.Contains(system.Content, "Privacy Analyst") || !strings.Contains(system.Content, Goal) {
		t.Errorf("system message = %+v", system)
	}
	if !strings.HasSuffix(model.userMessages()[0], "Expected output: A list of risks.") {
		t.Errorf("user message missing expected output: %q", model.userMessages()[0])
	}

	model = &foldModel{}
	_, _ = NewSequencer(model, 0).Synthesize(context.Background(), SynthesisRequest{Prompt: "p"})
	if !strings.Contains(model.calls[0][0].Content, DefaultPersona.Role) {
		t.Errorf("default persona not used: %q", model.calls[0][0].Content)
	}
}

func TestSequencer_Synthesize_ModelError(t *testing.T) {
	s := NewSequencer(&foldModel{err: errors.New("model offline")}, 0)
	_, err := s.Synthesize(context.Background(), SynthesisRequest{Prompt: "p", Content: []string{"c"}})
	if !errors.Is(err, service.ErrGeneration) {
		t.Errorf("Synthesize() error = %v, want ErrGeneration", err)
	}
}

func TestSequencer_Synthesize_CancelBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &foldModel{hook: func(call int) {
		if call == 1 {
			cancel()
		}
	}}
	s := NewSequencer(model, 400)

	_, err := s.Synthesize(ctx, SynthesisRequest{Prompt: "p", Content: longContent("a", "b", "c")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Synthesize() error = %v, want context.Canceled", err)
	}
	if n := len(model.userMessages()); n != 1 {
		t.Errorf("model called %d times after cancel, want 1", n)
	}
	if model.ctxs[0].Err() != nil {
		t.Error("in-flight call saw the cancellation")
	}
}

func TestSequencer_Refine(t *testing.T) {
	model := &foldModel{}
	s := NewSequencer(model, 0)
	_, err := s.Refine(context.Background(), RefineRequest{
		Prompt:  "Describe the processing",
		Draft:   "draft text",
		Content: []string{"source block"},
		Writer:  Persona{Role: "Privacy Analyst"},
	})
	if err != nil {
		t.Fatalf("Refine() error = %v", err)
	}
	call := model.calls[0]
	if !strings.Contains(call[0].Content, FormatterPersona.Role) {
		t.Errorf("Refine() system message = %q, want formatter persona", call[0].Content)
	}
	user := call[1].Content
	for _, want := range []string{"Privacy Analyst", "draft text", "source block", "Describe the processing", DefaultExpectedOutput} {
		if !strings.Contains(user, want) {
			t.Errorf("Refine() user message missing %q", want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Refine(ctx, RefineRequest{Draft: "d"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Refine() after cancel error = %v", err)
	}

	failing := NewSequencer(&foldModel{err: errors.New("boom")}, 0)
	if _, err := failing.Refine(context.Background(), RefineRequest{Draft: "d"}); !errors.Is(err, service.ErrGeneration) {
		t.Errorf("Refine() error = %v, want ErrGeneration", err)
	}
}
