package pipeline

// DocumentResult is the outcome for one downloaded document.
type DocumentResult struct {
	Document       string   `json:"document"`
	ChangeDetected bool     `json:"change_detected"`
	Item           string   `json:"item,omitempty"`
	NewRate        *float64 `json:"new_val,omitempty"`
	UpdateID       string   `json:"update_id,omitempty"`
	EvidencePath   string   `json:"evidence_path,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Report summarizes a pipeline run.
type Report struct {
	URL       string           `json:"url,omitempty"`
	Documents []string         `json:"documents"`
	Results   []DocumentResult `json:"results"`
}

// Changes counts the documents with a detected change.
func (r *Report) Changes() int {
	n := 0
	for _, res := range r.Results {
		if res.ChangeDetected {
			n++
		}
	}
	return n
}

// Failures counts the documents whose analysis failed.
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != "" {
			n++
		}
	}
	return n
}
