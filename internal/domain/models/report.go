package models

import "time"

type Asset struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Subscription groups the recipients of one asset's scheduled report.
type Subscription struct {
	Asset      Asset
	Recipients []string
}

// Analysis is the narrative produced for one metric.
type Analysis struct {
	Metric  string          `json:"metric"`
	Title   string          `json:"title"`
	Content string          `json:"content"`
	Color   string          `json:"-"`
	Data    ProcessedMetric `json:"-"`
}

type ReportSection struct {
	Analysis Analysis
	Chart    []byte // PNG
}

// ReportDocument is everything the composer needs for one asset.
type ReportDocument struct {
	Asset       Asset
	Summary     string
	Score       AggregateScore
	Band        ScoreBand
	Sections    []ReportSection
	GeneratedAt time.Time
}

// WelcomeDocument bundles several assets into a single onboarding report.
type WelcomeDocument struct {
	Recipient   string
	Assets      []ReportDocument
	GeneratedAt time.Time
}

// Stage names the pipeline step a run reached.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageProcess  Stage = "process"
	StageScore    Stage = "score"
	StageNarrate  Stage = "narrate"
	StageChart    Stage = "chart"
	StageCompose  Stage = "compose"
	StageDispatch Stage = "dispatch"
	StageDone     Stage = "done"
)

// RunDebug is attached to run results so operators can see how far a run got.
type RunDebug struct {
	RunID           string `json:"run_id"`
	Stage           Stage  `json:"stage"`
	MetricsFetched  int    `json:"metrics_fetched"`
	MetricsWithData int    `json:"metrics_with_data"`
	Narratives      int    `json:"narratives"`
	Charts          int    `json:"charts"`
	PDFBytes        int    `json:"pdf_bytes"`
	Recipients      int    `json:"recipients"`
	ScorePersisted  bool   `json:"score_persisted"`
	DurationMs      int64  `json:"duration_ms"`
	Error           string `json:"error,omitempty"`
}

// RunResult is the outcome of a run that got past FETCH. PDF is kept for
// callers that write the document somewhere other than email.
type RunResult struct {
	Success bool
	Partial bool
	Score   *AggregateScore
	Debug   RunDebug
	PDF     []byte
}

// ReportEvent is published after every run that produced a score.
type ReportEvent struct {
	RunID           string    `json:"run_id"`
	Kind            string    `json:"kind"`
	AssetSlug       string    `json:"asset_slug"`
	AggregateScore  int       `json:"aggregate_score"`
	NormalizedScore int       `json:"normalized_score"`
	MetricCount     int       `json:"metric_count"`
	Partial         bool      `json:"partial"`
	Recipients      int       `json:"recipients"`
	At              time.Time `json:"at"`
}
