package scoring

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// Filter selects the records that enter an aggregation. Empty fields match all.
type Filter struct {
	Scenario string `json:"scenario,omitempty"`
	Zone     string `json:"zone,omitempty"`
	CalcYear int    `json:"calc_year"`
}

// Row is one evaluated record in a zone.
type Row struct {
	Key    string        `json:"key"`
	Record *store.Record `json:"record"`
	Result Result        `json:"result"`
}

// ZoneTotal sums the evaluated records of one accumulation zone.
type ZoneTotal struct {
	Zone       string          `json:"zone"`
	Count      int             `json:"count"`
	SumInsured decimal.Decimal `json:"sum_insured"`
	EMLPD      decimal.Decimal `json:"eml_pd"`
	EMLBI      decimal.Decimal `json:"eml_bi"`
	EML        decimal.Decimal `json:"eml"`
	Rows       []Row           `json:"rows,omitempty"`
}

func (z *ZoneTotal) add(r Row) {
	z.Count++
	z.SumInsured = z.SumInsured.Add(decimal.NewFromFloat(r.Record.SumInsured))
	z.EMLPD = z.EMLPD.Add(decimal.NewFromInt(r.Result.EMLPD))
	z.EMLBI = z.EMLBI.Add(decimal.NewFromInt(r.Result.EMLBI))
	z.EML = z.EML.Add(decimal.NewFromInt(r.Result.EML))
}

// Report is an aggregation grouped by zone, zones sorted by name.
type Report struct {
	Filter Filter      `json:"filter"`
	Zones  []ZoneTotal `json:"zones"`
	Total  ZoneTotal   `json:"total"`
}

// Aggregate evaluates every included record matching f and sums it per zone.
// Records are evaluated for f.Scenario, or their own tag when it is empty.
func (e *Engine) Aggregate(doc *store.Document, f Filter) Report {
	byZone := make(map[string]*ZoneTotal)
	for _, key := range doc.Keys() {
		rec := doc.Records[key]
		if !rec.Included {
			continue
		}
		if f.Scenario != "" && !strings.EqualFold(strings.TrimSpace(rec.Scenario), strings.TrimSpace(f.Scenario)) {
			continue
		}
		zone := strings.TrimSpace(rec.Zone)
		if f.Zone != "" && zone != strings.TrimSpace(f.Zone) {
			continue
		}

		z, ok := byZone[zone]
		if !ok {
			z = &ZoneTotal{Zone: zone}
			byZone[zone] = z
		}
		row := Row{Key: key, Record: rec, Result: e.Evaluate(rec, f.Scenario, f.CalcYear)}
		z.Rows = append(z.Rows, row)
		z.add(row)
	}

	report := Report{Filter: f, Zones: make([]ZoneTotal, 0, len(byZone)), Total: ZoneTotal{Zone: "Totalt"}}
	zones := make([]string, 0, len(byZone))
	for zone := range byZone {
		zones = append(zones, zone)
	}
	sort.Strings(zones)

	for _, zone := range zones {
		z := byZone[zone]
		sort.SliceStable(z.Rows, func(i, j int) bool {
			return lessRiskNo(z.Rows[i], z.Rows[j])
		})
		report.Total.Count += z.Count
		report.Total.SumInsured = report.Total.SumInsured.Add(z.SumInsured)
		report.Total.EMLPD = report.Total.EMLPD.Add(z.EMLPD)
		report.Total.EMLBI = report.Total.EMLBI.Add(z.EMLBI)
		report.Total.EML = report.Total.EML.Add(z.EML)
		report.Zones = append(report.Zones, *z)
	}
	return report
}

// lessRiskNo puts numeric risk numbers first in numeric order, then the rest
// as text. Ties fall back to the key.
func lessRiskNo(a, b Row) bool {
	ra, rb := a.Record.RiskNo, b.Record.RiskNo
	na, errA := strconv.Atoi(ra)
	nb, errB := strconv.Atoi(rb)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		if ra != rb {
			return ra < rb
		}
	}
	return a.Key < b.Key
}
