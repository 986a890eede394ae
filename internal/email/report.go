package email

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
)

// ShiftReport is mailed to managers when a shift closes.
type ShiftReport struct {
	Date    string
	Shift   model.Shift
	Ceiling int
	Summary dashboard.Summary
}

var shiftReportTmpl = template.Must(template.New("shift_report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif;">
  <h2>Relatório do turno: {{.ShiftLabel}} de {{.Date}}</h2>
  <p><strong>Atendimentos:</strong> {{.Summary.Total}} de {{.Ceiling}} vagas</p>
  <ul>
    <li>Concluídos: {{.Summary.Completed}}</li>
    <li>Em atendimento: {{.Summary.InProgress}}</li>
    <li>Aguardando: {{.Summary.Waiting}}</li>
    <li>Tempo médio até a alta: {{.Summary.AverageMinutes}} min</li>
  </ul>
  {{if .Summary.ByPriority}}
  <h3>Por prioridade</h3>
  <table cellpadding="4">
    {{range .Summary.ByPriority}}<tr><td style="color: {{.Color}};">&#9679;</td><td>{{.Label}}</td><td>{{.Count}}</td></tr>
    {{end}}
  </table>
  {{end}}
  {{if .Summary.ByServiceType}}
  <h3>Por tipo de atendimento</h3>
  <table cellpadding="4">
    {{range .Summary.ByServiceType}}<tr><td>{{.Label}}</td><td>{{.Count}}</td></tr>
    {{end}}
  </table>
  {{end}}
  <p style="font-size: 12px; color: #666;">Mensagem automática do sistema de triagem.</p>
</body>
</html>`))

// Render returns the subject and HTML body.
func (r ShiftReport) Render() (string, string, error) {
	var buf bytes.Buffer
	data := struct {
		ShiftReport
		ShiftLabel string
	}{r, r.Shift.Label()}
	if err := shiftReportTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render shift report: %w", err)
	}
	subject := fmt.Sprintf("Relatório do turno %s - %s", r.Shift.Label(), r.Date)
	return subject, buf.String(), nil
}
