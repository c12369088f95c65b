package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Kumule/internal/scoring"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

func newTestEngine(t *testing.T) *scoring.Engine {
	t.Helper()
	e, err := scoring.NewEngine(scoring.DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func exportFixture() *store.Document {
	doc := store.NewDocument()
	doc.Put("101-5-Storgata 1", &store.Record{
		Zone: "101", RiskNo: "5", PolicyNo: "P-1", Customer: "Oslo Eiendom", Address: "Storgata 1",
		SumInsured: 10_000_000, Scenario: "Flom", Included: true,
		RateOverride: store.Override{Enabled: true, Value: 0.4677},
	})
	doc.Put("101-6", &store.Record{
		Zone: "101", RiskNo: "6", SumInsured: 2_000_000, Description: "Driftstap",
		Scenario: "Flom", Included: true,
		AmountOverride: store.Override{Enabled: true, Value: 500_000},
	})
	doc.Put("200-1", &store.Record{Zone: "200", RiskNo: "1", SumInsured: 1_000_000, Scenario: "Flom"})
	doc.Scenarios[store.ScenarioMetaKey("Flom", "101")] = store.ScenarioMeta{Description: "Elv <går> over"}
	return doc
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "4 677 000", FormatAmount(4_677_000))
	assert.Equal(t, "999", FormatAmount(999))
	assert.Equal(t, "0", FormatAmount(0))
	assert.Equal(t, "-1 500", FormatAmount(-1500))
	assert.Equal(t, "10 000 000", FormatSum(10_000_000))
	assert.Equal(t, "2 500 000", FormatSum(2_500_000.5))
	assert.Equal(t, "2 500 001", FormatSum(2_500_000.6))
	assert.Equal(t, "1 234 567", FormatDecimal(decimal.NewFromInt(1_234_567)))
	assert.Equal(t, "46.77 %", FormatRate(0.4677))
	assert.Equal(t, "100.00 %", FormatRate(1))
	assert.Equal(t, "0.33", FormatFactor(1.0/3.0))
}

func TestWriteCSV(t *testing.T) {
	e := newTestEngine(t)
	rows := Rows(e, exportFixture(), scoring.Filter{Scenario: "Flom", CalcYear: 2025}, false)
	require.Len(t, rows, 2)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, 0))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Columns, records[0])

	first := records[1]
	assert.Equal(t, "101-5-Storgata 1", first[0])
	assert.Equal(t, "10 000 000", first[6])
	assert.Equal(t, "46.77 %", first[7])
	assert.Equal(t, "manual rate", first[8])
	assert.Equal(t, "1.00", first[9])
	assert.Equal(t, "4 677 000", first[10])
	assert.Equal(t, "0", first[11])
	assert.Equal(t, "4 677 000", first[12])
	assert.Equal(t, "Flom", first[13])

	second := records[2]
	assert.Equal(t, "manual amount (legacy)", second[8])
	assert.Equal(t, "0", second[10])
	assert.Equal(t, "500 000", second[11])
}

func TestWriteCSVSemicolonAll(t *testing.T) {
	e := newTestEngine(t)
	rows := Rows(e, exportFixture(), scoring.Filter{Scenario: "Flom", CalcYear: 2025}, true)
	require.Len(t, rows, 3, "all records, included or not")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, ';'))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Objekt;Kumulesone;"))
	assert.True(t, strings.HasPrefix(lines[3], "200-1;200;"))
}

func TestWriteHTML(t *testing.T) {
	e := newTestEngine(t)
	doc := exportFixture()
	report := e.Aggregate(doc, scoring.Filter{Scenario: "Flom", CalcYear: 2025})

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, doc, report, time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)))
	out := buf.String()

	assert.Contains(t, out, "<title>EML-rapport – Flom</title>")
	assert.Contains(t, out, "Beregningsår 2025")
	assert.Contains(t, out, "2025-04-01T08:00:00Z")
	assert.Contains(t, out, "Elv &lt;går&gt; over")
	assert.Contains(t, out, "<td>Totalt</td>")
	assert.Contains(t, out, "5 177 000")
	assert.Contains(t, out, "<th>Eksponeringsfaktor</th>")
	assert.NotContains(t, out, "200-1")
}
