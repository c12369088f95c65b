package export

import (
	"html/template"
	"io"
	"time"

	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="no">
<head>
<meta charset="utf-8">
<title>EML-rapport{{if .Scenario}} – {{.Scenario}}{{end}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #999; padding: 3px 6px; }
td.num { text-align: right; white-space: nowrap; }
tfoot td { font-weight: bold; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>EML-rapport{{if .Scenario}} – {{.Scenario}}{{end}}</h1>
<p>Beregningsår {{.CalcYear}} · generert {{.Generated}}</p>
{{range .Descriptions}}
<h3>{{.Zone}}</h3>
<p>{{.Text}}</p>
{{end}}
<h2>Sum per kumulesone</h2>
<table>
<thead><tr><th>Kumulesone</th><th>Antall</th><th>Sum forsikring</th><th>EML PD</th><th>EML BI</th><th>EML total</th></tr></thead>
<tbody>
{{range .Zones}}<tr><td>{{.Zone}}</td><td class="num">{{.Count}}</td><td class="num">{{.SumInsured}}</td><td class="num">{{.PD}}</td><td class="num">{{.BI}}</td><td class="num">{{.EML}}</td></tr>
{{end}}</tbody>
<tfoot>{{with .Total}}<tr><td>{{.Zone}}</td><td class="num">{{.Count}}</td><td class="num">{{.SumInsured}}</td><td class="num">{{.PD}}</td><td class="num">{{.BI}}</td><td class="num">{{.EML}}</td></tr>{{end}}</tfoot>
</table>
<h2>Objekter</h2>
<table>
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

type zoneLine struct {
	Zone       string
	Count      int
	SumInsured string
	PD         string
	BI         string
	EML        string
}

type description struct {
	Zone string
	Text string
}

type reportData struct {
	Scenario     string
	CalcYear     int
	Generated    string
	Descriptions []description
	Zones        []zoneLine
	Total        zoneLine
	Columns      []string
	Rows         [][]string
}

func zoneLineOf(z scoring.ZoneTotal) zoneLine {
	return zoneLine{
		Zone:       z.Zone,
		Count:      z.Count,
		SumInsured: FormatDecimal(z.SumInsured),
		PD:         FormatDecimal(z.EMLPD),
		BI:         FormatDecimal(z.EMLBI),
		EML:        FormatDecimal(z.EML),
	}
}

// WriteHTML renders a printable report: zone totals, the scenario description
// of each zone, and one line per record.
func WriteHTML(w io.Writer, doc *store.Document, report scoring.Report, generated time.Time) error {
	data := reportData{
		Scenario:  report.Filter.Scenario,
		CalcYear:  report.Filter.CalcYear,
		Generated: store.Timestamp(generated),
		Total:     zoneLineOf(report.Total),
		Columns:   Columns,
	}
	for _, z := range report.Zones {
		data.Zones = append(data.Zones, zoneLineOf(z))
		if report.Filter.Scenario != "" {
			if meta, ok := doc.Scenarios[store.ScenarioMetaKey(report.Filter.Scenario, z.Zone)]; ok && meta.Description != "" {
				data.Descriptions = append(data.Descriptions, description{Zone: z.Zone, Text: meta.Description})
			}
		}
		for _, row := range z.Rows {
			data.Rows = append(data.Rows, Cells(row))
		}
	}
	return reportTemplate.Execute(w, data)
}
