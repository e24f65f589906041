package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"finpulse/internal/core"
)

func TestRegistry_DefaultTemplatesCoverSeededTriggers(t *testing.T) {
	r := NewRegistry()

	def := runwayDef()
	event := runwayEvent()

	for id := range defaultTemplates {
		def.TemplateID = id
		subject, body, err := r.Render(id, def, event)
		if err != nil {
			t.Errorf("template %s failed to render: %v", id, err)
			continue
		}
		if subject == "" || body == "" {
			t.Errorf("template %s rendered empty output", id)
		}
	}
}

func TestRegistry_RenderRunwayLow(t *testing.T) {
	r := NewRegistry()

	subject, body, err := r.Render("runway_low", runwayDef(), runwayEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(subject, "20 days") {
		t.Errorf("subject missing measured days: %q", subject)
	}
	if !strings.Contains(body, "30 days") {
		t.Errorf("body missing the band edge: %q", body)
	}
}

func TestRegistry_RenderMilestoneWithPrevious(t *testing.T) {
	r := NewRegistry()

	def := runwayDef()
	def.Name = "Revenue milestone"
	def.TemplateID = "revenue_milestone"

	prev := 1000.0
	event := core.TriggerEvent{
		TriggerID:        "revenue_milestone",
		OrgID:            "org-1",
		EvaluatedAt:      time.Date(2025, 6, 30, 9, 0, 0, 0, time.UTC),
		MeasuredValue:    5200,
		PreviousValue:    &prev,
		ThresholdCrossed: 5000,
	}

	_, body, err := r.Render("revenue_milestone", def, event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "$5000") {
		t.Errorf("body missing crossed rung: %q", body)
	}
	if !strings.Contains(body, "previous rung: $1000") {
		t.Errorf("body missing previous rung: %q", body)
	}
}

func TestRegistry_UnknownTemplate(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Render("nope", runwayDef(), runwayEvent())
	if !errors.Is(err, core.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestRegistry_RegisterOverride(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("custom", "S {{.TriggerName}}", "B {{.MeasuredValue}}"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	def := runwayDef()
	def.TemplateID = "custom"
	subject, body, err := r.Render("custom", def, runwayEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subject != "S Low cash runway" || body != "B 20" {
		t.Errorf("unexpected render: %q / %q", subject, body)
	}

	if err := r.Register("broken", "{{.Oops", "body"); err == nil {
		t.Error("expected parse error for malformed template")
	}
}
