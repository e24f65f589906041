package notify

import (
	"fmt"
	"strings"
	"text/template"

	"finpulse/internal/core"
)

// TemplateData is the rendering context for one trigger event.
type TemplateData struct {
	OrgID            string
	TriggerName      string
	MeasuredValue    float64
	PreviousValue    float64
	HasPrevious      bool
	ThresholdCrossed float64
	EvaluatedAt      string
}

type alertTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Registry maps template ids to render templates. An enabled trigger whose
// template id is not registered is a configuration error, reported as
// core.ErrTemplateNotFound.
type Registry struct {
	templates map[string]alertTemplate
}

// defaultTemplates covers the template ids referenced by the seeded trigger
// set.
var defaultTemplates = map[string][2]string{
	"runway_critical": {
		"[CRITICAL] {{.TriggerName}}: {{printf \"%.0f\" .MeasuredValue}} days of runway left",
		"Cash runway is down to {{printf \"%.0f\" .MeasuredValue}} days (critical band: {{printf \"%.0f\" .ThresholdCrossed}} days). Evaluated at {{.EvaluatedAt}}.",
	},
	"runway_low": {
		"[WARNING] {{.TriggerName}}: {{printf \"%.0f\" .MeasuredValue}} days of runway left",
		"Cash runway is down to {{printf \"%.0f\" .MeasuredValue}} days (warning band: {{printf \"%.0f\" .ThresholdCrossed}} days). Evaluated at {{.EvaluatedAt}}.",
	},
	"revenue_milestone": {
		"{{.TriggerName}}: ${{printf \"%.0f\" .ThresholdCrossed}} crossed",
		"Total revenue reached ${{printf \"%.2f\" .MeasuredValue}}, crossing the ${{printf \"%.0f\" .ThresholdCrossed}} milestone{{if .HasPrevious}} (previous rung: ${{printf \"%.0f\" .PreviousValue}}){{end}}.",
	},
	"customer_milestone": {
		"{{.TriggerName}}: {{printf \"%.0f\" .ThresholdCrossed}} customers",
		"Active subscriptions reached {{printf \"%.0f\" .MeasuredValue}}, crossing the {{printf \"%.0f\" .ThresholdCrossed}} milestone.",
	},
	"mrr_negative": {
		"{{.TriggerName}}: MRR shrank {{printf \"%.1f\" .MeasuredValue}}%",
		"Monthly recurring revenue growth is {{printf \"%.1f\" .MeasuredValue}}% against the prior period.",
	},
	"churn_spike": {
		"{{.TriggerName}}: churn at {{printf \"%.1f\" .MeasuredValue}}%",
		"Churn rate is {{printf \"%.1f\" .MeasuredValue}}%, above the {{printf \"%.1f\" .ThresholdCrossed}}% limit.",
	},
	"cancellation_spike": {
		"{{.TriggerName}}: cancellations up {{printf \"%.0f\" .MeasuredValue}}%",
		"Week-over-week cancellations grew {{printf \"%.0f\" .MeasuredValue}}%, above the {{printf \"%.0f\" .ThresholdCrossed}}% spike limit.",
	},
	"payment_failures": {
		"{{.TriggerName}}: {{printf \"%.1f\" .MeasuredValue}}% of payments failing",
		"Payment failure rate is {{printf \"%.1f\" .MeasuredValue}}%, above the {{printf \"%.1f\" .ThresholdCrossed}}% limit.",
	},
	"integration_stale": {
		"{{.TriggerName}}: no gateway sync for {{printf \"%.1f\" .MeasuredValue}}h",
		"The payment gateway integration last synced {{printf \"%.1f\" .MeasuredValue}} hours ago (limit: {{printf \"%.0f\" .ThresholdCrossed}}h).",
	},
	"data_sync_stale": {
		"{{.TriggerName}}: no data for {{printf \"%.1f\" .MeasuredValue}}h",
		"No transaction data has arrived for {{printf \"%.1f\" .MeasuredValue}} hours (limit: {{printf \"%.0f\" .ThresholdCrossed}}h).",
	},
}

// NewRegistry builds the registry with the default template set.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]alertTemplate, len(defaultTemplates))}
	for id, pair := range defaultTemplates {
		// Defaults are compile-time constants; a parse failure here is a
		// programming error.
		r.templates[id] = alertTemplate{
			subject: template.Must(template.New(id + "_subject").Parse(pair[0])),
			body:    template.Must(template.New(id + "_body").Parse(pair[1])),
		}
	}
	return r
}

// Register adds or replaces a template pair.
func (r *Registry) Register(id, subject, body string) error {
	subj, err := template.New(id + "_subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("parse subject template: %w", err)
	}
	bod, err := template.New(id + "_body").Parse(body)
	if err != nil {
		return fmt.Errorf("parse body template: %w", err)
	}
	r.templates[id] = alertTemplate{subject: subj, body: bod}
	return nil
}

// Render produces subject and body for one event.
func (r *Registry) Render(templateID string, def core.TriggerDefinition, event core.TriggerEvent) (subject, body string, err error) {
	tmpl, ok := r.templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", core.ErrTemplateNotFound, templateID)
	}

	data := TemplateData{
		OrgID:            event.OrgID,
		TriggerName:      def.Name,
		MeasuredValue:    event.MeasuredValue,
		ThresholdCrossed: event.ThresholdCrossed,
		EvaluatedAt:      event.EvaluatedAt.Format("2006-01-02 15:04 MST"),
	}
	if event.PreviousValue != nil {
		data.HasPrevious = true
		data.PreviousValue = *event.PreviousValue
	}

	var subjBuf, bodyBuf strings.Builder
	if err := tmpl.subject.Execute(&subjBuf, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.body.Execute(&bodyBuf, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return subjBuf.String(), bodyBuf.String(), nil
}
