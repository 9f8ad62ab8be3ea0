package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"dpia-ai/internal/service"
)

// SectionKind selects the generation variant of a section.
type SectionKind string

const (
	KindStandard       SectionKind = "standard"
	KindRiskAssessment SectionKind = "riskAssessment"
	KindRiskMitigation SectionKind = "riskMitigation"
)

// Ref names a section by its step and section keys.
type Ref struct {
	Step    string `json:"Step"`
	Section string `json:"Section"`
}

// Section is one prompt of a template.
type Section struct {
	Key    string
	Prompt string
	// DependsOn names an earlier section whose text is background for this one.
	DependsOn *Ref
	Kind      SectionKind
}

// Step is an ordered group of sections.
type Step struct {
	Key      string
	Sections []Section
}

// Template is the ordered structure a report is generated from.
type Template struct {
	Steps []Step
}

// SectionCount returns the number of sections across all steps.
func (t *Template) SectionCount() int {
	n := 0
	for _, step := range t.Steps {
		n += len(step.Sections)
	}
	return n
}

type sectionJSON struct {
	Content string `json:"content"`
	From    *Ref   `json:"from"`
	Kind    string `json:"kind"`
}

// LoadTemplate parses a template of the form
//
//	{"<step>": {"<section>": {"content": "...", "from": {"Step": "...", "Section": "..."}, "kind": "..."}}}
//
// keeping steps and sections in document order. "from" and "kind" are
// optional; without "kind" the kind is inferred from the step and section keys.
// A section may also be given as a bare prompt string.
func LoadTemplate(data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tmpl := &Template{}

	err := walkObject(dec, func(stepKey string) error {
		step := Step{Key: stepKey}
		err := walkObject(dec, func(sectionKey string) error {
			raw, err := decodeSection(dec)
			if err != nil {
				return fmt.Errorf("section %q: %w", sectionKey, err)
			}
			kind, err := sectionKind(raw.Kind, stepKey, sectionKey)
			if err != nil {
				return err
			}
			sec := Section{Key: sectionKey, Prompt: raw.Content, Kind: kind}
			if raw.From != nil && (raw.From.Step != "" || raw.From.Section != "") {
				dep := *raw.From
				sec.DependsOn = &dep
			}
			step.Sections = append(step.Sections, sec)
			return nil
		})
		if err != nil {
			return fmt.Errorf("step %q: %w", stepKey, err)
		}
		tmpl.Steps = append(tmpl.Steps, step)
		return nil
	})
	if err != nil {
		return nil, &service.ValidationError{Field: "template", Message: err.Error()}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, &service.ValidationError{Field: "template", Message: "trailing data after template"}
	}
	if tmpl.SectionCount() == 0 {
		return nil, &service.ValidationError{Field: "template", Message: "has no sections"}
	}
	return tmpl, nil
}

// walkObject reads one JSON object from dec, calling fn for every key with
// the decoder positioned at its value. fn must consume the value.
// Duplicate keys are rejected.
func walkObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected key, got %v", tok)
		}
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func decodeSection(dec *json.Decoder) (sectionJSON, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return sectionJSON{}, err
	}
	var sec sectionJSON
	if len(raw) > 0 && raw[0] == '"' {
		err := json.Unmarshal(raw, &sec.Content)
		return sec, err
	}
	err := json.Unmarshal(raw, &sec)
	return sec, err
}

func sectionKind(explicit, stepKey, sectionKey string) (SectionKind, error) {
	switch SectionKind(explicit) {
	case KindStandard, KindRiskAssessment, KindRiskMitigation:
		return SectionKind(explicit), nil
	case "":
	default:
		return "", fmt.Errorf("section %q: unknown kind %q", sectionKey, explicit)
	}
	if kind := inferKind(stepKey); kind != KindStandard {
		return kind, nil
	}
	return inferKind(sectionKey), nil
}

// inferKind recognises the risk steps of a DPIA template, e.g.
// "Identify and Assess Risks" and "Identify Measures to Reduce Risk".
func inferKind(key string) SectionKind {
	k := strings.ToLower(key)
	if !strings.Contains(k, "risk") {
		return KindStandard
	}
	switch {
	case strings.Contains(k, "mitigat"), strings.Contains(k, "reduce"), strings.Contains(k, "measure"):
		return KindRiskMitigation
	case strings.Contains(k, "assess"), strings.Contains(k, "identif"):
		return KindRiskAssessment
	}
	return KindStandard
}
