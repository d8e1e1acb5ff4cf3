package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Slug      string `query:"slug" json:"slug" validate:"required,min=3,max=200"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"12m" validate:"oneof=1m 3m 12m 5y"`
	Geo       string `query:"geo" json:"geo" default:"GLOBAL" validate:"min=2,max=10"`
}

type WarmupStatusRequest struct {
	Slug      string `query:"slug" json:"slug" validate:"required,min=3,max=200"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"12m" validate:"oneof=1m 3m 12m 5y"`
	Geo       string `query:"geo" json:"geo" default:"GLOBAL" validate:"min=2,max=10"`
}

type TrustRequest struct {
	Period string `query:"period" json:"period" default:"all-time" validate:"min=1,max=50"`
}

// WarmupRunResult is the job execution endpoint response body.
type WarmupRunResult struct {
	Success bool   `json:"success"`
	JobID   int64  `json:"job_id,omitempty"`
	Slug    string `json:"slug,omitempty"`
	DebugID string `json:"debug_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EvaluateResult is the evaluation batch endpoint response body.
type EvaluateResult struct {
	Evaluated  int `json:"evaluated"`
	TotalFound int `json:"total_found"`
}
