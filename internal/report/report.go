package report

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SectionState is the progress of one section through generation.
type SectionState string

const (
	StateNotStarted   SectionState = "not_started"
	StateRetrieving   SectionState = "retrieving"
	StateReranking    SectionState = "reranking"
	StateSynthesizing SectionState = "synthesizing"
	StateValidating   SectionState = "validating"
	StateDone         SectionState = "done"
	StateSkipped      SectionState = "skipped"
	StateFailed       SectionState = "failed"
)

// GeneratedSection is the text produced for one section.
type GeneratedSection struct {
	Key   string
	Text  string
	State SectionState
}

// GeneratedStep holds the sections of one step in template order.
type GeneratedStep struct {
	Key      string
	Sections []GeneratedSection
}

// GeneratedReport maps step and section keys to generated text in template
// order. It marshals as {"<step>": {"<section>": "<text>"}}.
type GeneratedReport struct {
	Steps []GeneratedStep
}

// Text returns the generated text of a section and whether it exists.
func (r *GeneratedReport) Text(step, section string) (string, bool) {
	for _, s := range r.Steps {
		if s.Key != step {
			continue
		}
		for _, sec := range s.Sections {
			if sec.Key == section {
				return sec.Text, true
			}
		}
	}
	return "", false
}

// Complete reports whether r has exactly the steps and sections of tmpl, in order.
func (r *GeneratedReport) Complete(tmpl *Template) bool {
	if len(r.Steps) != len(tmpl.Steps) {
		return false
	}
	for i, step := range tmpl.Steps {
		got := r.Steps[i]
		if got.Key != step.Key || len(got.Sections) != len(step.Sections) {
			return false
		}
		for j, sec := range step.Sections {
			if got.Sections[j].Key != sec.Key {
				return false
			}
		}
	}
	return true
}

func (r *GeneratedReport) startStep(key string) {
	r.Steps = append(r.Steps, GeneratedStep{Key: key})
}

// addSection appends to the step started last.
func (r *GeneratedReport) addSection(sec GeneratedSection) {
	last := &r.Steps[len(r.Steps)-1]
	last.Sections = append(last.Sections, sec)
}

// MarshalJSON writes the report as nested objects in template order.
func (r *GeneratedReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, step := range r.Steps {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, step.Key); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, sec := range step.Sections {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, sec.Key); err != nil {
				return nil, err
			}
			text, err := json.Marshal(sec.Text)
			if err != nil {
				return nil, err
			}
			buf.Write(text)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a report written by MarshalJSON, keeping key order.
// Section states are not part of the encoding; non-empty text reads as done
// and empty text as skipped.
func (r *GeneratedReport) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var steps []GeneratedStep
	err := walkObject(dec, func(stepKey string) error {
		step := GeneratedStep{Key: stepKey}
		err := walkObject(dec, func(sectionKey string) error {
			var text string
			if err := dec.Decode(&text); err != nil {
				return fmt.Errorf("section %q: %w", sectionKey, err)
			}
			state := StateDone
			if text == "" {
				state = StateSkipped
			}
			step.Sections = append(step.Sections, GeneratedSection{Key: sectionKey, Text: text, State: state})
			return nil
		})
		if err != nil {
			return fmt.Errorf("step %q: %w", stepKey, err)
		}
		steps = append(steps, step)
		return nil
	})
	if err != nil {
		return err
	}
	r.Steps = steps
	return nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	b, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}
