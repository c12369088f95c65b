package scoring

import (
	"strings"

	"github.com/MikeSquared-Agency/Kumule/internal/store"
)

// IsProject reports whether rec is a multi-year construction project. An
// explicit flag wins; otherwise the description and address are searched for
// any of keywords.
func IsProject(rec *store.Record, keywords []string) bool {
	if rec.Project != nil && rec.Project.IsProject != nil {
		return *rec.Project.IsProject
	}
	text := strings.ToLower(rec.Description + " " + rec.Address)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// ProjectFactor is the share of the sum insured exposed in calcYear for a
// project that ramps up linearly from StartYear to EndYear.
//
//	manual override        → max(0, value), no upper bound
//	missing/reversed years → 1.0
//	calcYear < start       → 0.0
//	final year or later    → 1.0
//	otherwise              → position / total
func ProjectFactor(p *store.Project, calcYear int) float64 {
	if p == nil {
		return 1.0
	}
	if p.Override.Enabled {
		return nonNegative(p.Override.Value)
	}
	if p.StartYear == nil || p.EndYear == nil {
		return 1.0
	}
	start, end := *p.StartYear, *p.EndYear
	if end < start {
		return 1.0
	}
	if calcYear < start {
		return 0.0
	}
	total := end - start + 1
	position := calcYear - start + 1
	if position >= total {
		return 1.0
	}
	return clamp(float64(position)/float64(total), 0, 1)
}

// ClassifyCoverage returns the explicit coverage when set, otherwise classifies
// by keyword in the description. Business interruption wins over property.
func ClassifyCoverage(rec *store.Record) store.Coverage {
	switch rec.Coverage {
	case store.CoveragePD, store.CoverageBI:
		return rec.Coverage
	}
	desc := strings.ToLower(rec.Description)
	switch {
	case strings.Contains(desc, "driftstap"):
		return store.CoverageBI
	case strings.Contains(desc, "bygning"):
		return store.CoveragePD
	default:
		return store.CoveragePD
	}
}
