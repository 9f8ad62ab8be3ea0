package report

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleReport() *GeneratedReport {
	r := &GeneratedReport{}
	r.startStep("Step2")
	r.addSection(GeneratedSection{Key: "Z", Text: "z text", State: StateDone})
	r.addSection(GeneratedSection{Key: "A", Text: "", State: StateSkipped})
	r.startStep("Step1")
	r.addSection(GeneratedSection{Key: "B", Text: "quote \" and\nnewline", State: StateDone})
	return r
}

func TestGeneratedReport_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleReport())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"Step2":{"Z":"z text","A":""},"Step1":{"B":"quote \" and\nnewline"}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var back GeneratedReport
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(&back, sampleReport()) {
		t.Errorf("Unmarshal() = %+v, want %+v", back, sampleReport())
	}
}

func TestGeneratedReport_UnmarshalJSON_Invalid(t *testing.T) {
	for _, data := range []string{`[]`, `{"S": "x"}`, `{"S": {"A": 1}}`} {
		var r GeneratedReport
		if err := json.Unmarshal([]byte(data), &r); err == nil {
			t.Errorf("Unmarshal(%s) expected error", data)
		}
	}
}

func TestGeneratedReport_Text(t *testing.T) {
	r := sampleReport()
	if got, ok := r.Text("Step2", "Z"); !ok || got != "z text" {
		t.Errorf("Text(Step2, Z) = %q, %v", got, ok)
	}
	if got, ok := r.Text("Step2", "A"); !ok || got != "" {
		t.Errorf("Text(Step2, A) = %q, %v; want empty, true", got, ok)
	}
	if _, ok := r.Text("Step1", "Z"); ok {
		t.Error("Text(Step1, Z) found a section of another step")
	}
}

func TestGeneratedReport_Complete(t *testing.T) {
	tmpl := &Template{Steps: []Step{
		{Key: "Step2", Sections: []Section{{Key: "Z"}, {Key: "A"}}},
		{Key: "Step1", Sections: []Section{{Key: "B"}}},
	}}
	if !sampleReport().Complete(tmpl) {
		t.Error("Complete() = false for a fully keyed report")
	}

	partial := sampleReport()
	partial.Steps = partial.Steps[:1]
	if partial.Complete(tmpl) {
		t.Error("Complete() = true for a partial report")
	}

	renamed := sampleReport()
	renamed.Steps[0].Sections[1].Key = "other"
	if renamed.Complete(tmpl) {
		t.Error("Complete() = true with a mismatched key")
	}
}
