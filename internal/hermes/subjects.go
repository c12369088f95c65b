package hermes

import "strings"

const (
	SubjectImportCompleted = "kumule.import.completed"
	SubjectDatabaseMerged  = "kumule.database.merged"

	StreamName     = "KUMULE_EVENTS"
	StreamSubjects = "kumule.>"
	StreamMaxAge   = "2160h" // 90 days
)

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// Token makes a record key or zone usable as a single subject token.
func Token(s string) string {
	s = tokenReplacer.Replace(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}

func SubjectRecordSaved(key string) string   { return "kumule.record." + Token(key) + ".saved" }
func SubjectRecordDeleted(key string) string { return "kumule.record." + Token(key) + ".deleted" }

func SubjectZoneSelection(zone string) string { return "kumule.zone." + Token(zone) + ".selection" }

func SubjectScenarioDescribed(scenario, zone string) string {
	return "kumule.scenario." + Token(scenario) + "." + Token(zone) + ".described"
}
