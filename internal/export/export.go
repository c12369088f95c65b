package export

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// Columns is the header shared by every export format.
var Columns = []string{
	"Objekt",
	"Kumulesone",
	"Forsnr",
	"Risikonr",
	"Kunde",
	"Adresse",
	"Sum forsikring",
	"EML-rate",
	"Kilde",
	"Eksponeringsfaktor",
	"EML PD",
	"EML BI",
	"EML total",
	"Scenario",
}

// Rows evaluates the records to export. With all set every record is listed,
// otherwise only those that enter the aggregation for f.
func Rows(engine *scoring.Engine, doc *store.Document, f scoring.Filter, all bool) []scoring.Row {
	if !all {
		var rows []scoring.Row
		for _, z := range engine.Aggregate(doc, f).Zones {
			rows = append(rows, z.Rows...)
		}
		return rows
	}

	rows := make([]scoring.Row, 0, len(doc.Records))
	for _, key := range doc.Keys() {
		rec := doc.Records[key]
		if f.Zone != "" && strings.TrimSpace(rec.Zone) != strings.TrimSpace(f.Zone) {
			continue
		}
		rows = append(rows, scoring.Row{Key: key, Record: rec, Result: engine.Evaluate(rec, f.Scenario, f.CalcYear)})
	}
	return rows
}

// Cells renders one row in column order.
func Cells(row scoring.Row) []string {
	rec, res := row.Record, row.Result
	return []string{
		row.Key,
		rec.Zone,
		rec.PolicyNo,
		rec.RiskNo,
		rec.Customer,
		rec.Address,
		FormatSum(rec.SumInsured),
		FormatRate(res.Rate),
		string(res.Source),
		FormatFactor(res.ExposureFactor),
		FormatAmount(res.EMLPD),
		FormatAmount(res.EMLBI),
		FormatAmount(res.EML),
		res.Scenario,
	}
}

// WriteCSV writes the header and rows. A zero delimiter means comma.
func WriteCSV(w io.Writer, rows []scoring.Row, delimiter rune) error {
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(Cells(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
