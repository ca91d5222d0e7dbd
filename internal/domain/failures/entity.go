package failures

import "time"

// Failure is one failed attempt of the analysis chain.
type Failure struct {
	ID          int64     `json:"id"`
	AnalysisID  int64     `json:"analysis_id"`
	JobID       string    `json:"job_id"`
	Attempt     int       `json:"attempt"`
	Stage       string    `json:"stage,omitempty"` // data_quality | business_strategy | erp_config | other
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
