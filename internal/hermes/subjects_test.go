package hermes

import "testing"

func TestSubjects(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SubjectRecordSaved("101-5-Storgata 1"), "kumule.record.101-5-Storgata_1.saved"},
		{SubjectRecordDeleted("MAN_1a2b3c4d"), "kumule.record.MAN_1a2b3c4d.deleted"},
		{SubjectZoneSelection("10.1"), "kumule.zone.10_1.selection"},
		{SubjectScenarioDescribed("Brann", "101"), "kumule.scenario.Brann.101.described"},
		{SubjectRecordSaved(" "), "kumule.record._.saved"},
		{SubjectRecordSaved("a*b>c"), "kumule.record.a_b_c.saved"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
