package notification

import (
	"strings"
	"text/template"

	"github.com/k3a/html2text"

	"github.com/plantops/sitewatch/internal/errors"
)

// TemplateData carries the fields available to alert templates.
type TemplateData struct {
	EquipmentName   string
	MaintenanceType string
	// State is the urgency state name (warning, critical, overdue).
	State         string
	DistanceHours float64
	CurrentHours  float64
	NextDueHours  float64
}

// DefaultAlertTitleTemplate is the built-in subject line.
const DefaultAlertTitleTemplate = `[{{.State | upper}}] {{.EquipmentName}}: {{.MaintenanceType}}`

// DefaultAlertBodyTemplate is the built-in HTML body. Push transports receive
// the html2text conversion of the rendered output.
const DefaultAlertBodyTemplate = `<p>Maintenance <b>{{.MaintenanceType}}</b> on <b>{{.EquipmentName}}</b> is <b>{{.State}}</b>.</p>
<p>{{if eq .State "overdue"}}Overdue by {{printf "%.1f" .DistanceHours}} running hours.{{else}}Due in {{printf "%.1f" .DistanceHours}} running hours.{{end}}</p>
<p>Current counter: {{printf "%.1f" .CurrentHours}} h &mdash; next maintenance at {{printf "%.1f" .NextDueHours}} h.</p>`

// templateFuncs are the helpers available inside alert templates.
var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// RenderTemplate renders a named template against the given data.
func RenderTemplate(name, tmpl string, data *TemplateData) (string, error) {
	parsed, err := template.New(name).Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", errors.New(err).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("template", name).
			Build()
	}
	var sb strings.Builder
	if err := parsed.Execute(&sb, data); err != nil {
		return "", errors.New(err).
			Component("notification").
			Category(errors.CategoryValidation).
			Context("template", name).
			Build()
	}
	return sb.String(), nil
}

// RenderAlertBody renders the HTML body template and converts it to plain
// text for transports that do not render HTML.
func RenderAlertBody(data *TemplateData) (string, error) {
	html, err := RenderTemplate("alert-body", DefaultAlertBodyTemplate, data)
	if err != nil {
		return "", err
	}
	return html2text.HTML2Text(html), nil
}
