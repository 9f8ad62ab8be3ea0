package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dpia-ai/internal/contextutil"
	"dpia-ai/internal/llm"
	"dpia-ai/internal/rag"
	"dpia-ai/internal/service"
	"dpia-ai/internal/storage"
)

const (
	assignPrompt = "Based on the provided context: %s. Provide a 'Role', and a 'Backstory' with one sentence. " +
		"Your response must be in key-value JSON format."

	riskAssessmentOutput = "Return a professional formatted list with Risk, Likelihood of harm, Severity of harm, and Overall risk."
	riskMitigationOutput = "Return a professional formatted list with Risk, Solution, Effect, Residual Risk, and Measure Approved."
)

// RiskAnalystPersona writes the risk sections.
var RiskAnalystPersona = rag.Persona{
	Role:      "Risk Analyst",
	Backstory: "A professional with experience in DPIA risk analysis and mitigation.",
}

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks dpia-ai/internal/report Retriever
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_synthesizer.go -package=mocks dpia-ai/internal/report Synthesizer

// Retriever finds raw blocks for a query within a scope.
type Retriever interface {
	Retrieve(ctx context.Context, req rag.RetrieveRequest) ([]storage.Block, error)
}

// Reranker reorders retrieved content by relevance. It never fails.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) []string
}

// Synthesizer writes and proofreads answers over retrieved content.
type Synthesizer interface {
	Synthesize(ctx context.Context, req rag.SynthesisRequest) (string, error)
	Refine(ctx context.Context, req rag.RefineRequest) (string, error)
}

// Options configures a Generator.
type Options struct {
	// AssignPersonas asks the model for a writer persona per step.
	AssignPersonas bool
	// RetrievalK is the number of blocks retrieved per section.
	RetrievalK int
}

// Generator produces reports section by section in template order.
type Generator struct {
	retriever   Retriever
	reranker    Reranker
	synthesizer Synthesizer
	model       rag.ChatModel
	opts        Options
}

// NewGenerator creates a Generator. model is used for persona assignment
// and may be nil when AssignPersonas is off.
func NewGenerator(retriever Retriever, reranker Reranker, synthesizer Synthesizer, model rag.ChatModel, opts Options) *Generator {
	if model == nil {
		opts.AssignPersonas = false
	}
	return &Generator{
		retriever:   retriever,
		reranker:    reranker,
		synthesizer: synthesizer,
		model:       model,
		opts:        opts,
	}
}

// SectionEvent reports that a section reached a final state.
type SectionEvent struct {
	Step      string
	Section   string
	State     SectionState
	Completed int // sections finished so far, including this one
	Total     int
}

// RunOption customises one Generate call.
type RunOption func(*runConfig)

type runConfig struct {
	progress func(SectionEvent)
}

// WithProgress calls fn after every section finishes, succeeds or not.
func WithProgress(fn func(SectionEvent)) RunOption {
	return func(c *runConfig) {
		c.progress = fn
	}
}

// run is the state of one Generate call.
type run struct {
	scope          storage.Scope
	report         *GeneratedReport
	lastAssessment string
	completed      int
	total          int
}

// Generate walks tmpl in order and returns the full report. Cancellation is
// observed before each step and each section. Any section failure fails the
// whole report; no partial report is returned.
func (g *Generator) Generate(ctx context.Context, scope storage.Scope, tmpl *Template, opts ...RunOption) (*GeneratedReport, error) {
	if err := scope.Validate(); err != nil {
		return nil, &service.ValidationError{Field: "scope", Message: err.Error()}
	}
	if tmpl == nil || tmpl.SectionCount() == 0 {
		return nil, &service.ValidationError{Field: "template", Message: "has no sections"}
	}
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := contextutil.LoggerFromContext(ctx)

	r := &run{scope: scope, report: &GeneratedReport{}, total: tmpl.SectionCount()}
	logger.InfoContext(ctx, "report generation started", "steps", len(tmpl.Steps), "sections", r.total)

	for _, step := range tmpl.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stepCtx := contextutil.WithAttrs(ctx, "step", step.Key)
		persona := g.assignPersona(stepCtx, step)
		r.report.startStep(step.Key)

		for _, sec := range step.Sections {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			secCtx := contextutil.WithAttrs(stepCtx, "section", sec.Key, "kind", sec.Kind)
			text, state, err := g.section(secCtx, r, sec, persona)
			r.completed++
			if err != nil {
				contextutil.LoggerFromContext(secCtx).ErrorContext(secCtx, "section failed", "error", err)
				notify(cfg.progress, SectionEvent{Step: step.Key, Section: sec.Key, State: StateFailed, Completed: r.completed, Total: r.total})
				return nil, fmt.Errorf("step %q section %q: %w", step.Key, sec.Key, err)
			}

			r.report.addSection(GeneratedSection{Key: sec.Key, Text: text, State: state})
			if sec.Kind == KindRiskAssessment && state == StateDone {
				r.lastAssessment = text
			}
			notify(cfg.progress, SectionEvent{Step: step.Key, Section: sec.Key, State: state, Completed: r.completed, Total: r.total})
		}
	}

	logger.InfoContext(ctx, "report generation completed", "sections", r.total)
	return r.report, nil
}

func notify(fn func(SectionEvent), ev SectionEvent) {
	if fn != nil {
		fn(ev)
	}
}

// section runs one section through retrieve, rerank, synthesize and validate.
// A blank prompt is skipped without model calls.
func (g *Generator) section(ctx context.Context, r *run, sec Section, persona rag.Persona) (string, SectionState, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if strings.TrimSpace(sec.Prompt) == "" {
		logger.InfoContext(ctx, "section skipped", "state", StateSkipped)
		return "", StateSkipped, nil
	}

	background := g.background(ctx, r, sec)
	expected := rag.DefaultExpectedOutput
	prompt := sec.Prompt
	switch sec.Kind {
	case KindRiskAssessment:
		persona = RiskAnalystPersona
		expected = riskAssessmentOutput
	case KindRiskMitigation:
		persona = RiskAnalystPersona
		expected = riskMitigationOutput
		if r.lastAssessment != "" {
			prompt = "For each identified risk, provide a solution as required in the prompt: " + sec.Prompt
		}
	}

	// Retrieval and rerank are model calls too; once issued they complete.
	callCtx := context.WithoutCancel(ctx)

	logger.DebugContext(ctx, "section state", "state", StateRetrieving)
	blocks, err := g.retriever.Retrieve(callCtx, rag.RetrieveRequest{Query: sec.Prompt, Scope: r.scope, K: g.opts.RetrievalK})
	if err != nil {
		return "", StateFailed, fmt.Errorf("retrieve: %w", err)
	}

	logger.DebugContext(ctx, "section state", "state", StateReranking, "candidates", len(blocks))
	content := g.reranker.Rerank(callCtx, sec.Prompt, rag.Contents(blocks))

	logger.DebugContext(ctx, "section state", "state", StateSynthesizing, "content_items", len(content))
	draft, err := g.synthesizer.Synthesize(ctx, rag.SynthesisRequest{
		Prompt:         prompt,
		Content:        content,
		Background:     background,
		Persona:        persona,
		ExpectedOutput: expected,
	})
	if err != nil {
		return "", StateFailed, err
	}

	logger.DebugContext(ctx, "section state", "state", StateValidating)
	text, err := g.synthesizer.Refine(ctx, rag.RefineRequest{
		Prompt:         prompt,
		Draft:          draft,
		Content:        content,
		Writer:         persona,
		Formatter:      rag.FormatterPersona,
		ExpectedOutput: expected,
	})
	if err != nil {
		return "", StateFailed, err
	}

	logger.InfoContext(ctx, "section generated", "state", StateDone, "text_length", len(text))
	return text, StateDone, nil
}

// background resolves the text a section builds on. A dependency that does not
// point at an already generated section contributes nothing. Mitigation
// sections always build on the last risk assessment.
func (g *Generator) background(ctx context.Context, r *run, sec Section) string {
	var parts []string
	if sec.Kind == KindRiskMitigation && r.lastAssessment != "" {
		parts = append(parts, r.lastAssessment)
	}
	if dep := sec.DependsOn; dep != nil {
		text, ok := r.report.Text(dep.Step, dep.Section)
		switch {
		case !ok:
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "generating without background",
				"error", service.ErrDependencyUnresolved,
				"depends_on_step", dep.Step,
				"depends_on_section", dep.Section,
			)
		case text != "" && (len(parts) == 0 || parts[0] != text):
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// assignPersona asks the model who should write a step. Any failure falls
// back to the default persona.
func (g *Generator) assignPersona(ctx context.Context, step Step) rag.Persona {
	if !g.opts.AssignPersonas {
		return rag.DefaultPersona
	}
	var overview strings.Builder
	fmt.Fprintf(&overview, "%s:", step.Key)
	blank := true
	for _, sec := range step.Sections {
		if strings.TrimSpace(sec.Prompt) == "" {
			continue
		}
		blank = false
		fmt.Fprintf(&overview, "\n%s: %s", sec.Key, sec.Prompt)
	}
	if blank {
		return rag.DefaultPersona
	}

	logger := contextutil.LoggerFromContext(ctx)
	reply, err := g.model.ChatWithMessages(context.WithoutCancel(ctx), []llm.Message{
		{Role: "user", Content: fmt.Sprintf(assignPrompt, overview.String())},
	}, llm.ChatParams{})
	if err != nil {
		logger.WarnContext(ctx, "persona assignment failed, using default", "error", err)
		return rag.DefaultPersona
	}
	persona, err := parsePersona(reply)
	if err != nil {
		logger.WarnContext(ctx, "persona reply unusable, using default", "error", err)
		return rag.DefaultPersona
	}
	logger.InfoContext(ctx, "persona assigned", "role", persona.Role)
	return persona
}

// parsePersona reads {"Role": ..., "Backstory": ...} from a model reply,
// tolerating code fences and text around the object.
func parsePersona(reply string) (rag.Persona, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return rag.Persona{}, fmt.Errorf("no JSON object in reply")
	}
	var p rag.Persona
	if err := json.Unmarshal([]byte(reply[start:end+1]), &p); err != nil {
		return rag.Persona{}, err
	}
	p.Role = strings.TrimSpace(p.Role)
	p.Backstory = strings.TrimSpace(p.Backstory)
	if p.Role == "" {
		return rag.Persona{}, fmt.Errorf("reply has no Role")
	}
	return p, nil
}
