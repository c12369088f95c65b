package hermes

type RecordSavedEvent struct {
	Key      string  `json:"key"`
	Action   string  `json:"action"` // created, updated, cloned
	Zone     string  `json:"kumulesone"`
	Scenario string  `json:"scenario"`
	Included bool    `json:"include"`
	Rate     float64 `json:"rate"`
	Source   string  `json:"source"`
	EML      int64   `json:"eml"`
	By       string  `json:"by,omitempty"`
	At       string  `json:"at"`
}

type RecordDeletedEvent struct {
	Key string `json:"key"`
	By  string `json:"by,omitempty"`
	At  string `json:"at"`
}

type ImportCompletedEvent struct {
	File      string `json:"file"`
	MD5       string `json:"md5"`
	Rows      int    `json:"rows"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Duplicate bool   `json:"duplicate"`
	At        string `json:"at"`
}

type ZoneSelectionEvent struct {
	Zone     string `json:"kumulesone"`
	Included bool   `json:"include"`
	Scenario string `json:"scenario,omitempty"`
	Records  int    `json:"records"`
	By       string `json:"by,omitempty"`
	At       string `json:"at"`
}

type ScenarioDescribedEvent struct {
	Scenario string `json:"scenario"`
	Zone     string `json:"kumulesone"`
	By       string `json:"by,omitempty"`
	At       string `json:"at"`
}

type DatabaseMergedEvent struct {
	Records int    `json:"records"`
	By      string `json:"by,omitempty"`
	At      string `json:"at"`
}
