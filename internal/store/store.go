package store

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrExists     = errors.New("record already exists")
	ErrSaveFailed = errors.New("could not persist database")
)

// TimeLayout is the layout of every `updated` timestamp in the document.
const TimeLayout = "2006-01-02T15:04:05Z"

// Timestamp formats t the way records store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Level is an ordinal hazard category. 0 means unset/none, 3 is the highest.
type Level int

const (
	LevelNone   Level = 0
	LevelLow    Level = 1
	LevelMedium Level = 2
	LevelHigh   Level = 3
)

// Valid reports whether l is inside 0..3.
func (l Level) Valid() bool {
	return l >= LevelNone && l <= LevelHigh
}

// ClampLevel forces n into the ordinal domain.
func ClampLevel(n int) Level {
	if n < int(LevelNone) {
		return LevelNone
	}
	if n > int(LevelHigh) {
		return LevelHigh
	}
	return Level(n)
}

type Coverage string

const (
	CoveragePD Coverage = "PD"
	CoverageBI Coverage = "BI"
)

// Override is a manual value that replaces a computed one while Enabled.
type Override struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
}

// FireScenario holds the three qualitative choices of the fire scenario editor.
type FireScenario struct {
	Ignition         string `json:"risiko_for_brann,omitempty"`
	Spread           string `json:"spredning_av_brann,omitempty"`
	SuppressionDelay string `json:"tid_for_slukkeinnsats,omitempty"`
	Updated          string `json:"updated,omitempty"`
}

// Project carries time-scaling inputs for multi-year construction projects.
// IsProject nil means "decide by keyword".
type Project struct {
	IsProject *bool    `json:"er_prosjekt,omitempty"`
	StartYear *int     `json:"start_ar,omitempty"`
	EndYear   *int     `json:"slutt_ar,omitempty"`
	Override  Override `json:"-"`
}

type Record struct {
	Zone         string
	RiskNo       string
	PolicyNo     string
	Address      string
	Customer     string
	PostalCode   string
	Municipality string
	Description  string

	SumInsured float64

	FireRisk            Level
	FireRiskNote        string
	LimitingFactors     Level
	LimitingFactorsNote string
	Protection          Level
	ProtectionNote      string
	Exposure            Level
	ExposureNote        string

	Coverage Coverage

	RateOverride     Override
	AmountOverride   Override
	SeverityOverride Override

	Fire    *FireScenario
	Project *Project

	Scenario string
	Included bool

	CalculatedOn string
	CalculatedBy string
	Origin       string
	Updated      string
}

// NewRecord returns an empty record stamped with now.
func NewRecord(now time.Time) *Record {
	return &Record{Updated: Timestamp(now)}
}

// Touch stamps the record as modified.
func (r *Record) Touch(now time.Time) {
	r.Updated = Timestamp(now)
}

// Copy returns a deep copy of r.
func (r *Record) Copy() *Record {
	c := *r
	if r.Fire != nil {
		f := *r.Fire
		c.Fire = &f
	}
	if r.Project != nil {
		p := *r.Project
		if r.Project.IsProject != nil {
			v := *r.Project.IsProject
			p.IsProject = &v
		}
		if r.Project.StartYear != nil {
			v := *r.Project.StartYear
			p.StartYear = &v
		}
		if r.Project.EndYear != nil {
			v := *r.Project.EndYear
			p.EndYear = &v
		}
		c.Project = &p
	}
	return &c
}

// ScenarioMeta is the free-text description kept per scenario and zone.
type ScenarioMeta struct {
	Scenario    string `json:"scenario"`
	Zone        string `json:"kumulesone"`
	Description string `json:"beskrivelse"`
	Updated     string `json:"updated"`
	UpdatedBy   string `json:"updated_by"`
}

// ScenarioMetaKey is the `_scenario_meta` key for a scenario and zone.
func ScenarioMetaKey(scenario, zone string) string {
	return strings.TrimSpace(scenario + "::" + zone)
}

// ImportStamp identifies the last imported spreadsheet.
type ImportStamp struct {
	MD5  string `json:"md5"`
	File string `json:"file,omitempty"`
	Rows int    `json:"rows"`
	At   string `json:"at"`
}

// RecordFilter selects records by case-insensitive substring.
type RecordFilter struct {
	Customer string
	Address  string
	Zone     string
}

func (f RecordFilter) Match(r *Record) bool {
	return containsFold(r.Customer, f.Customer) &&
		containsFold(r.Address, f.Address) &&
		containsFold(r.Zone, f.Zone)
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Document is the whole persisted database: records plus underscore-prefixed metadata.
type Document struct {
	Records    map[string]*Record
	Scenarios  map[string]ScenarioMeta
	LastImport *ImportStamp
	// Extra keeps unknown underscore keys and non-object values so a save
	// never drops them.
	Extra map[string][]byte
}

func NewDocument() *Document {
	return &Document{
		Records:   make(map[string]*Record),
		Scenarios: make(map[string]ScenarioMeta),
		Extra:     make(map[string][]byte),
	}
}

// IsMetaKey reports whether key holds metadata instead of a record.
func IsMetaKey(key string) bool {
	return strings.HasPrefix(key, "_")
}

// Keys returns record keys in ascending order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Records))
	for k := range d.Records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Document) Get(key string) (*Record, error) {
	rec, ok := d.Records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Create adds a new record and fails if the key is taken.
func (d *Document) Create(key string, rec *Record) error {
	if key == "" || IsMetaKey(key) {
		return errors.New("invalid record key")
	}
	if _, ok := d.Records[key]; ok {
		return ErrExists
	}
	if _, ok := d.Extra[key]; ok {
		return ErrExists
	}
	d.Records[key] = rec
	return nil
}

// Put inserts or replaces a record.
func (d *Document) Put(key string, rec *Record) {
	d.Records[key] = rec
}

func (d *Document) Delete(key string) error {
	if _, ok := d.Records[key]; !ok {
		return ErrNotFound
	}
	delete(d.Records, key)
	return nil
}

// Clone copies key into the first free "<key> kopi N" slot and returns the new key.
func (d *Document) Clone(key string, now time.Time) (string, error) {
	src, err := d.Get(key)
	if err != nil {
		return "", err
	}
	i := 1
	name := cloneName(key, i)
	for {
		if _, taken := d.Records[name]; !taken {
			break
		}
		i++
		name = cloneName(key, i)
	}
	c := src.Copy()
	c.Touch(now)
	d.Records[name] = c
	return name, nil
}

func cloneName(key string, i int) string {
	return key + " kopi " + strconv.Itoa(i)
}

// Filter returns the keys of records matching f, sorted.
func (d *Document) Filter(f RecordFilter) []string {
	var keys []string
	for _, k := range d.Keys() {
		if f.Match(d.Records[k]) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Zones lists the distinct non-empty accumulation zones, sorted.
func (d *Document) Zones() []string {
	seen := make(map[string]bool)
	var zones []string
	for _, r := range d.Records {
		z := strings.TrimSpace(r.Zone)
		if z == "" || seen[z] {
			continue
		}
		seen[z] = true
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}

// SetZoneSelection flips the include flag on every record in zone. When include
// is true and scenario is non-empty the records are also moved to scenario.
// Returns the number of records touched.
func (d *Document) SetZoneSelection(zone string, include bool, scenario string, now time.Time) int {
	n := 0
	for _, r := range d.Records {
		if r.Zone != zone {
			continue
		}
		r.Included = include
		if include && scenario != "" {
			r.Scenario = scenario
		}
		r.Touch(now)
		n++
	}
	return n
}

// Merge copies every record and metadata entry of other into d, overwriting on conflict.
func (d *Document) Merge(other *Document) {
	for k, r := range other.Records {
		d.Records[k] = r
	}
	for k, m := range other.Scenarios {
		d.Scenarios[k] = m
	}
	if other.LastImport != nil {
		d.LastImport = other.LastImport
	}
	for k, v := range other.Extra {
		d.Extra[k] = v
	}
}

// Store persists one Document.
type Store interface {
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
	// Update runs load, fn and save as one serialized step. The document is
	// not saved when fn returns an error.
	Update(ctx context.Context, fn func(doc *Document) error) error
	Close() error
}
