package importer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/Kumule/internal/config"
	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// Field names of the column dictionary.
const (
	FieldZone         = "kumulenr"
	FieldRiskNo       = "risikonr"
	FieldPolicyNo     = "forsnr"
	FieldAddress      = "adresse"
	FieldCustomer     = "kundenavn"
	FieldSumInsured   = "tariffsum"
	FieldPostalCode   = "postnummer"
	FieldMunicipality = "kommune"
	FieldDescription  = "beskrivelse"
)

// OriginImport marks records created by an import.
const OriginImport = "import"

// MissingColumnsError lists required fields with no matching header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Result summarizes one import.
type Result struct {
	File      string        `json:"file"`
	MD5       string        `json:"md5"`
	Rows      int           `json:"rows"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Duplicate bool          `json:"duplicate"`
	Keys      []string      `json:"keys,omitempty"`
	Issues    []store.Issue `json:"issues,omitempty"`
}

type Importer struct {
	columns   map[string][]string
	required  []string
	scenarios []string
	logger    *slog.Logger
	now       func() time.Time
}

func New(cfg config.ImportConfig, logger *slog.Logger) *Importer {
	return &Importer{
		columns:   cfg.Columns,
		required:  cfg.Required,
		scenarios: cfg.Scenarios,
		logger:    logger,
		now:       time.Now,
	}
}

// resolveHeader maps each dictionary field to its column index. Matching is
// case-insensitive on trimmed header names.
func (im *Importer) resolveHeader(header []string) map[string]int {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byName[name]; !dup && name != "" {
			byName[name] = i
		}
	}
	idx := make(map[string]int)
	for field, aliases := range im.columns {
		for _, a := range append([]string{field}, aliases...) {
			if i, ok := byName[strings.ToLower(strings.TrimSpace(a))]; ok {
				idx[field] = i
				break
			}
		}
	}
	return idx
}

// Apply upserts the rows of a spreadsheet into doc. A file identical to the
// last import is reported as Duplicate and leaves doc untouched. Existing
// records keep their hazard levels, overrides, include flag and scenario.
func (im *Importer) Apply(doc *store.Document, filename string, data []byte) (*Result, error) {
	sum := md5.Sum(data)
	res := &Result{File: filename, MD5: hex.EncodeToString(sum[:])}
	if doc.LastImport != nil && doc.LastImport.MD5 == res.MD5 {
		res.Duplicate = true
		return res, nil
	}

	table, err := ReadTable(data, DetectFormat(filename, data))
	if err != nil {
		return nil, err
	}

	idx := im.resolveHeader(table.Header)
	var missing []string
	for _, f := range im.required {
		if _, ok := idx[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Missing: missing}
	}

	now := im.now()
	for n, row := range table.Rows {
		if blank(row) {
			continue
		}
		res.Rows++
		cell := func(field string) (string, bool) {
			i, ok := idx[field]
			if !ok {
				return "", false
			}
			if i >= len(row) {
				return "", true
			}
			return strings.TrimSpace(row[i]), true
		}

		zone, _ := cell(FieldZone)
		riskNo, _ := cell(FieldRiskNo)
		address, _ := cell(FieldAddress)
		zone, riskNo = cleanID(zone), cleanID(riskNo)

		key := strings.Trim(fmt.Sprintf("%s-%s-%s", zone, riskNo, address), "-")
		if key == "" || store.IsMetaKey(key) {
			res.Skipped++
			res.Issues = append(res.Issues, store.Issue{Key: fmt.Sprintf("row %d", n+2), Reason: "no zone, risk number or address"})
			continue
		}

		rec, exists := doc.Records[key]
		if exists {
			res.Updated++
		} else {
			rec = store.NewRecord(now)
			rec.Origin = OriginImport
			if len(im.scenarios) > 0 {
				rec.Scenario = im.scenarios[0]
			}
			doc.Put(key, rec)
			res.Created++
		}

		rec.Zone = zone
		rec.RiskNo = riskNo
		if _, ok := idx[FieldAddress]; ok {
			rec.Address = address
		}
		if v, ok := cell(FieldPolicyNo); ok {
			rec.PolicyNo = cleanID(v)
		}
		if v, ok := cell(FieldCustomer); ok {
			rec.Customer = v
		}
		if v, ok := cell(FieldPostalCode); ok {
			rec.PostalCode = cleanID(v)
		}
		if v, ok := cell(FieldMunicipality); ok {
			rec.Municipality = v
		}
		if v, ok := cell(FieldDescription); ok {
			rec.Description = v
		}
		if v, ok := cell(FieldSumInsured); ok {
			p := store.ParseNumber(v, 0)
			switch {
			case p.Malformed():
				res.Issues = append(res.Issues, store.Issue{Key: key, Field: FieldSumInsured, Raw: v, Reason: "not a number, using 0"})
			case p.Value < 0:
				res.Issues = append(res.Issues, store.Issue{Key: key, Field: FieldSumInsured, Raw: v, Reason: "negative, using 0"})
				p.Value = 0
			}
			rec.SumInsured = p.Value
		}
		rec.Touch(now)
		res.Keys = append(res.Keys, key)
	}

	doc.LastImport = &store.ImportStamp{
		MD5:  res.MD5,
		File: filename,
		Rows: res.Rows,
		At:   store.Timestamp(now),
	}

	for _, is := range res.Issues {
		im.logger.Warn("import cell defaulted", "file", filename, "key", is.Key, "field", is.Field, "raw", is.Raw, "reason", is.Reason)
	}
	im.logger.Info("import applied",
		"file", filename,
		"rows", res.Rows,
		"created", res.Created,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

// cleanID drops the ".0" spreadsheets append to whole numbers.
func cleanID(s string) string {
	if head, ok := strings.CutSuffix(s, ".0"); ok && head != "" && strings.Trim(head, "0123456789") == "" {
		return head
	}
	return s
}
