package models

import "time"

// MetricRecord is one raw time-stamped observation as synced into the
// metric store. Value is nil when the source value was not numeric. OHLC
// records carry the four price fields instead of Value.
type MetricRecord struct {
	AssetSlug  string    `json:"asset_slug"`
	MetricType string    `json:"metric_type"`
	Datetime   time.Time `json:"datetime"`
	Value      *float64  `json:"value,omitempty"`
	Open       *float64  `json:"open,omitempty"`
	High       *float64  `json:"high,omitempty"`
	Low        *float64  `json:"low,omitempty"`
	Close      *float64  `json:"close,omitempty"`
}

// ChartPoint is one point of a weekly aggregated series.
type ChartPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

type OHLCPoint struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// ProcessedMetric is the chart-ready summary of one metric type.
type ProcessedMetric struct {
	MetricType       string       `json:"metric_type"`
	Data             []ChartPoint `json:"data"`
	OHLC             []OHLCPoint  `json:"ohlc,omitempty"`
	CurrentValue     float64      `json:"current_value"`
	PercentChange24h float64      `json:"percent_change_24h"`
	IsOHLC           bool         `json:"is_ohlc"`
}

// Empty reports whether no usable data point survived processing.
func (p ProcessedMetric) Empty() bool {
	return len(p.Data) == 0 && len(p.OHLC) == 0
}

// PriceTick is a single trade observed on the live price feed.
type PriceTick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
