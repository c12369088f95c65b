package scoring

import (
	"testing"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

func aggregateFixture() *store.Document {
	doc := store.NewDocument()
	doc.Put("a", &store.Record{Zone: "200", RiskNo: "1", SumInsured: 500_000, Scenario: "Brann", Included: true})
	doc.Put("b", &store.Record{Zone: "101", RiskNo: "10", SumInsured: 1_000_000, Description: "Driftstap", Scenario: "Brann", Included: true})
	doc.Put("c", &store.Record{Zone: "101", RiskNo: "9", SumInsured: 2_000_000, Scenario: "Brann", Included: true})
	doc.Put("d", &store.Record{Zone: "101", RiskNo: "2", SumInsured: 7_000_000, Scenario: "Brann", Included: false})
	doc.Put("e", &store.Record{Zone: "101", RiskNo: "3", SumInsured: 4_000_000, Scenario: "Flom", Included: true,
		RateOverride: store.Override{Enabled: true, Value: 0.25}})
	return doc
}

func TestAggregateByScenario(t *testing.T) {
	e := newTestEngine(t)
	report := e.Aggregate(aggregateFixture(), Filter{Scenario: "Brann", CalcYear: 2025})

	if len(report.Zones) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(report.Zones))
	}
	z := report.Zones[0]
	if z.Zone != "101" || report.Zones[1].Zone != "200" {
		t.Errorf("zones not sorted: %s, %s", z.Zone, report.Zones[1].Zone)
	}
	if z.Count != 2 {
		t.Errorf("expected 2 records in 101, got %d", z.Count)
	}
	if z.Rows[0].Key != "c" || z.Rows[1].Key != "b" {
		t.Errorf("rows not sorted by risk number: %s, %s", z.Rows[0].Key, z.Rows[1].Key)
	}
	if got := z.EMLPD.String(); got != "2000000" {
		t.Errorf("expected PD 2000000, got %s", got)
	}
	if got := z.EMLBI.String(); got != "1000000" {
		t.Errorf("expected BI 1000000, got %s", got)
	}
	if got := z.EML.String(); got != "3000000" {
		t.Errorf("expected EML 3000000, got %s", got)
	}
	if got := z.SumInsured.String(); got != "3000000" {
		t.Errorf("expected SI 3000000, got %s", got)
	}
	if got := report.Total.EML.String(); got != "3500000" {
		t.Errorf("expected total 3500000, got %s", got)
	}
	if report.Total.Count != 3 {
		t.Errorf("expected total count 3, got %d", report.Total.Count)
	}
}

func TestAggregateByZone(t *testing.T) {
	e := newTestEngine(t)
	report := e.Aggregate(aggregateFixture(), Filter{Scenario: "Brann", Zone: "200", CalcYear: 2025})

	if len(report.Zones) != 1 || report.Zones[0].Zone != "200" {
		t.Fatalf("expected only zone 200, got %+v", report.Zones)
	}
	if got := report.Total.EML.String(); got != "500000" {
		t.Errorf("expected 500000, got %s", got)
	}
}

func TestAggregateOwnScenario(t *testing.T) {
	e := newTestEngine(t)
	report := e.Aggregate(aggregateFixture(), Filter{CalcYear: 2025})

	if report.Total.Count != 4 {
		t.Fatalf("expected 4 included records, got %d", report.Total.Count)
	}
	// Brann records at severity 1.0 plus the Flom record at its manual rate.
	if got := report.Total.EML.String(); got != "4500000" {
		t.Errorf("expected 4500000, got %s", got)
	}
	for _, row := range report.Zones[0].Rows {
		if row.Key == "e" && row.Result.Source != SourceManualRate {
			t.Errorf("expected Flom record on the standard path, got %q", row.Result.Source)
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	e := newTestEngine(t)
	report := e.Aggregate(store.NewDocument(), Filter{Scenario: "Brann"})
	if len(report.Zones) != 0 || !report.Total.EML.IsZero() {
		t.Errorf("expected empty report, got %+v", report)
	}
}

func TestAggregateMixedRiskNumbers(t *testing.T) {
	e := newTestEngine(t)
	riskNos := []string{"10", "1a", "9", "b", "2"}
	want := []string{"2", "9", "10", "1a", "b"}

	// Rotating the keys changes the order rows are collected in.
	for shift := range riskNos {
		doc := store.NewDocument()
		for i, no := range riskNos {
			key := string(rune('a' + (i+shift)%len(riskNos)))
			doc.Put(key, &store.Record{Zone: "101", RiskNo: no, Scenario: "Brann", Included: true})
		}
		rows := e.Aggregate(doc, Filter{Scenario: "Brann"}).Zones[0].Rows
		var got []string
		for _, r := range rows {
			got = append(got, r.Record.RiskNo)
		}
		if len(got) != len(want) {
			t.Fatalf("shift %d: expected %d rows, got %d", shift, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("shift %d: expected %v, got %v", shift, want, got)
			}
		}
	}
}
