package models

type GenerateReportRequest struct {
	AssetSlug   string   `json:"asset_slug" validate:"required"`
	AssetName   string   `json:"assetName" validate:"required"`
	AssetSymbol string   `json:"assetSymbol" validate:"required"`
	UserEmails  []string `json:"userEmails" validate:"required,min=1,dive,email"`
}

type WelcomeReportRequest struct {
	UserID     string   `json:"user_id" validate:"required"`
	AssetSlugs []string `json:"asset_slugs" validate:"required,min=1,max=20,dive,required"`
	Async      bool     `json:"async"`
}

type ScoreHistoryRequest struct {
	Asset string `param:"asset" validate:"required"`
	Limit int    `query:"limit" default:"30" validate:"gte=1,lte=365"`
}

// ReportResponse is the wire shape of both report endpoints.
type ReportResponse struct {
	Success        bool            `json:"success"`
	Partial        bool            `json:"partial,omitempty"`
	AggregateScore *AggregateScore `json:"aggregateScore,omitempty"`
	Queued         bool            `json:"queued,omitempty"`
	JobID          string          `json:"jobId,omitempty"`
	Debug          *RunDebug       `json:"debug,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// NewReportResponse maps a run outcome to the wire shape. Failed runs keep
// their debug block only when a run id was assigned.
func NewReportResponse(res RunResult, err error) ReportResponse {
	if err != nil {
		body := ReportResponse{Success: false, Error: err.Error()}
		if res.Debug.RunID != "" {
			dbg := res.Debug
			body.Debug = &dbg
		}
		return body
	}
	dbg := res.Debug
	return ReportResponse{
		Success:        res.Success,
		Partial:        res.Partial,
		AggregateScore: res.Score,
		Debug:          &dbg,
	}
}
