package processor

import (
	"math"
	"sort"
	"time"

	"CoinPulse/internal/domain/models"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

const (
	// A "24h ago" reference is any record between 20 and 30 hours older
	// than the latest one; sync jobs do not land on exact hours.
	changeWindowMin = 20 * time.Hour
	changeWindowMax = 30 * time.Hour

	// Epsilon below which a current value counts as zero.
	Epsilon = 1e-10
)

// Processor turns raw metric records into weekly chart series and 24h change
// figures. It holds no state between calls.
type Processor struct {
	l *applogger.Logger
}

func New(l *applogger.Logger) *Processor {
	if l == nil {
		l = applogger.Nop()
	}
	return &Processor{l: l}
}

type sample struct {
	at    time.Time
	value float64
}

// Process summarizes the records of one metric type. Records of other types
// are ignored; records with an invalid date or a non-numeric value are
// skipped.
func (p *Processor) Process(records []models.MetricRecord, metricType string) models.ProcessedMetric {
	out := models.ProcessedMetric{MetricType: metricType, Data: []models.ChartPoint{}}

	samples := make([]sample, 0, len(records))
	var badDate, badValue int
	for _, r := range records {
		if r.MetricType != metricType {
			continue
		}
		if r.Datetime.IsZero() {
			badDate++
			continue
		}
		if r.Value == nil || !finite(*r.Value) {
			badValue++
			continue
		}
		samples = append(samples, sample{at: r.Datetime, value: *r.Value})
	}
	p.logSkipped(metricType, badDate, badValue)

	if len(samples) == 0 {
		return out
	}
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].at.Before(samples[j].at) })

	out.Data = weekly(samples)
	out.CurrentValue = samples[len(samples)-1].value
	out.PercentChange24h = percentChange24h(samples)
	return out
}

// ProcessOHLC buckets candle records by ISO week keeping the last candle of
// each week. Data carries the close series so the metric can be charted.
// No percent change is computed.
func (p *Processor) ProcessOHLC(records []models.MetricRecord, metricType string) models.ProcessedMetric {
	out := models.ProcessedMetric{MetricType: metricType, Data: []models.ChartPoint{}, IsOHLC: true}

	candles := make([]models.OHLCPoint, 0, len(records))
	var badDate, badValue int
	for _, r := range records {
		if r.MetricType != metricType {
			continue
		}
		if r.Datetime.IsZero() {
			badDate++
			continue
		}
		if !validOHLC(r) {
			badValue++
			continue
		}
		candles = append(candles, models.OHLCPoint{
			Date:  r.Datetime,
			Open:  *r.Open,
			High:  *r.High,
			Low:   *r.Low,
			Close: *r.Close,
		})
	}
	p.logSkipped(metricType, badDate, badValue)

	if len(candles) == 0 {
		return out
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })

	var last util.WeekKey
	for i, c := range candles {
		key := util.ISOWeek(c.Date)
		if i > 0 && key == last {
			out.OHLC[len(out.OHLC)-1] = c
			continue
		}
		out.OHLC = append(out.OHLC, c)
		last = key
	}
	for _, c := range out.OHLC {
		out.Data = append(out.Data, models.ChartPoint{Date: c.Date, Value: c.Close})
	}
	out.CurrentValue = candles[len(candles)-1].Close
	return out
}

// ProcessCatalog resolves every logical metric of the catalog against the
// fetched records, trying alternate metric-type names in order. Metrics with
// no data under any name are still present, empty.
func (p *Processor) ProcessCatalog(records []models.MetricRecord, catalog []models.MetricSpec) map[string]models.ProcessedMetric {
	byType := make(map[string][]models.MetricRecord)
	for _, r := range records {
		byType[r.MetricType] = append(byType[r.MetricType], r)
	}

	out := make(map[string]models.ProcessedMetric, len(catalog))
	for _, spec := range catalog {
		var pm models.ProcessedMetric
		found := false
		for _, alt := range spec.Alternates {
			group, ok := byType[alt]
			if !ok {
				continue
			}
			if spec.OHLC {
				pm = p.ProcessOHLC(group, alt)
			} else {
				pm = p.Process(group, alt)
			}
			if !pm.Empty() {
				found = true
				break
			}
		}
		if !found {
			pm = models.ProcessedMetric{Data: []models.ChartPoint{}, IsOHLC: spec.OHLC}
			if len(spec.Alternates) > 0 {
				pm.MetricType = spec.Alternates[0]
			}
			p.l.Debug("metric has no data under any alternate",
				applogger.String("metric", spec.Name),
				applogger.Strings("alternates", spec.Alternates))
		}
		out[spec.Name] = pm
	}
	return out
}

// HasMeaningfulData reports whether a metric is worth narrating: a non-zero
// current value and at least two non-zero points in its series.
func HasMeaningfulData(pm models.ProcessedMetric) bool {
	if math.Abs(pm.CurrentValue) <= Epsilon || len(pm.Data) < 2 {
		return false
	}
	nonZero := 0
	for _, pt := range pm.Data {
		if math.Abs(pt.Value) > Epsilon {
			nonZero++
		}
	}
	return nonZero >= 2
}

func (p *Processor) logSkipped(metricType string, badDate, badValue int) {
	if badDate == 0 && badValue == 0 {
		return
	}
	p.l.Warn("skipped unusable metric records",
		applogger.String("metric_type", metricType),
		applogger.Int("invalid_date", badDate),
		applogger.Int("non_numeric", badValue))
}

// weekly collapses sorted samples to one point per ISO week, keeping the
// chronologically last value of each week.
func weekly(samples []sample) []models.ChartPoint {
	points := make([]models.ChartPoint, 0, len(samples)/7+1)
	var last util.WeekKey
	for i, s := range samples {
		key := util.ISOWeek(s.at)
		if i > 0 && key == last {
			points[len(points)-1] = models.ChartPoint{Date: s.at, Value: s.value}
			continue
		}
		points = append(points, models.ChartPoint{Date: s.at, Value: s.value})
		last = key
	}
	return points
}

// percentChange24h compares the latest sample with the newest sample lying
// 20-30h before it, falling back to the second most recent sample. A zero
// reference yields 0.
func percentChange24h(samples []sample) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	latest := samples[n-1]

	ref := -1
	for i := n - 2; i >= 0; i-- {
		age := latest.at.Sub(samples[i].at)
		if age > changeWindowMax {
			break
		}
		if age >= changeWindowMin {
			ref = i
			break
		}
	}
	if ref < 0 {
		ref = n - 2
	}

	prev := samples[ref].value
	if prev == 0 {
		return 0
	}
	change := (latest.value - prev) / prev * 100
	if !finite(change) {
		return 0
	}
	return change
}

func validOHLC(r models.MetricRecord) bool {
	for _, v := range []*float64{r.Open, r.High, r.Low, r.Close} {
		if v == nil || !finite(*v) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
