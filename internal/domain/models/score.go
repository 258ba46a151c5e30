package models

import "time"

// MetricScore is the per-metric sentiment vote.
type MetricScore int

const (
	ScoreBearish MetricScore = -1
	ScoreNeutral MetricScore = 0
	ScoreBullish MetricScore = 1
)

// AggregateScore is one immutable row of an asset's score history.
type AggregateScore struct {
	AssetSlug        string                 `json:"assetSlug"`
	AggregateScore   int                    `json:"aggregateScore"`
	NormalizedScore  int                    `json:"normalizedScore"`
	MetricCount      int                    `json:"metricCount"`
	IndividualScores map[string]MetricScore `json:"individualScores"`
	AnalysisDate     time.Time              `json:"analysisDate"`
}

// ScoreBand is one bucket of the fixed display scale.
type ScoreBand struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// ScoreHistory is the newest-first history of an asset plus the change
// between its two latest runs.
type ScoreHistory struct {
	AssetSlug       string           `json:"assetSlug"`
	Entries         []AggregateScore `json:"entries"`
	Delta           *int             `json:"delta,omitempty"`
	NormalizedDelta *int             `json:"normalizedDelta,omitempty"`
}
