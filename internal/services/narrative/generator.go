package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"CoinPulse/internal/domain/models"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/internal/services/processor"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

// ErrEmptyCompletion is returned when the model answers with nothing usable.
var ErrEmptyCompletion = errors.New("empty completion")

const systemPrompt = `You are a senior cryptocurrency market analyst writing a weekly research report for retail investors.
Write in clear, plain prose. Do not use markdown, bullet symbols, asterisks or headings marked with #.
Short section titles on their own line ending with a colon are allowed.`

// Generator writes the per-metric narratives and the executive summary.
type Generator struct {
	model       domsvc.TextModel
	concurrency int
	l           *applogger.Logger
}

func NewGenerator(model domsvc.TextModel, concurrency int, l *applogger.Logger) *Generator {
	if concurrency < 1 {
		concurrency = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Generator{model: model, concurrency: concurrency, l: l}
}

// Generate asks the model for one metric's analysis.
func (g *Generator) Generate(ctx context.Context, spec models.MetricSpec, pm models.ProcessedMetric, asset models.Asset) (models.Analysis, error) {
	out, err := g.model.Complete(ctx, systemPrompt, metricPrompt(spec, pm, asset))
	if err != nil {
		return models.Analysis{}, fmt.Errorf("complete %s: %w", spec.Name, err)
	}
	content := Clean(out)
	if content == "" {
		return models.Analysis{}, fmt.Errorf("complete %s: %w", spec.Name, ErrEmptyCompletion)
	}
	return models.Analysis{
		Metric:  spec.Name,
		Title:   title(spec),
		Content: content,
		Color:   spec.Color,
		Data:    pm,
	}, nil
}

// GenerateAll narrates every catalog metric with meaningful data, in catalog
// order. Metrics without data are skipped silently; model failures are logged
// and skipped.
func (g *Generator) GenerateAll(ctx context.Context, metrics map[string]models.ProcessedMetric, catalog []models.MetricSpec, asset models.Asset) []models.Analysis {
	type job struct {
		idx  int
		spec models.MetricSpec
		pm   models.ProcessedMetric
	}
	var jobs []job
	for _, spec := range catalog {
		pm, ok := metrics[spec.Name]
		if !ok || !processor.HasMeaningfulData(pm) {
			continue
		}
		jobs = append(jobs, job{idx: len(jobs), spec: spec, pm: pm})
	}

	results := make([]*models.Analysis, len(jobs))
	sem := make(chan struct{}, g.concurrency)
	var wg sync.WaitGroup
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			a, err := g.Generate(ctx, j.spec, j.pm, asset)
			if err != nil {
				g.l.Error("narrative generation failed",
					applogger.String("asset", asset.Slug),
					applogger.String("metric", j.spec.Name),
					applogger.Error(err))
				return
			}
			results[j.idx] = &a
		}(j)
	}
	wg.Wait()

	out := make([]models.Analysis, 0, len(results))
	for _, a := range results {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// GenerateOverallSummary condenses the metric analyses into an executive
// summary.
func (g *Generator) GenerateOverallSummary(ctx context.Context, analyses []models.Analysis, asset models.Asset) (string, error) {
	if len(analyses) == 0 {
		return "", fmt.Errorf("summary: no analyses")
	}
	out, err := g.model.Complete(ctx, systemPrompt, summaryPrompt(analyses, asset))
	if err != nil {
		return "", fmt.Errorf("complete summary: %w", err)
	}
	content := Clean(out)
	if content == "" {
		return "", fmt.Errorf("complete summary: %w", ErrEmptyCompletion)
	}
	return content, nil
}

// FallbackSummary is used when the model could not write a summary. It only
// restates the score.
func FallbackSummary(asset models.Asset, score models.AggregateScore, band models.ScoreBand, analyses int) string {
	return fmt.Sprintf(
		"%s (%s) scores %d on our normalized sentiment scale, which reads as %s. "+
			"%d of %d tracked metrics moved enough over the last 24 hours to register a signal, and %d are covered in detail in this report.",
		asset.Name, strings.ToUpper(asset.Symbol), score.NormalizedScore, band.Label,
		countVotes(score), score.MetricCount, analyses)
}

// Clean strips markdown emphasis and heading markers.
func Clean(s string) string {
	s = strings.NewReplacer("*", "", "#", "").Replace(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func metricPrompt(spec models.MetricSpec, pm models.ProcessedMetric, asset models.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the %s metric for %s (%s).\n\n", title(spec), asset.Name, strings.ToUpper(asset.Symbol))
	fmt.Fprintf(&b, "Current value: %s\n", util.Abbreviate(pm.CurrentValue))
	if pm.IsOHLC && len(pm.OHLC) > 0 {
		c := pm.OHLC[len(pm.OHLC)-1]
		fmt.Fprintf(&b, "Latest weekly candle (%s): open %s, high %s, low %s, close %s\n",
			c.Date.Format("2006-01-02"),
			util.Abbreviate(c.Open), util.Abbreviate(c.High), util.Abbreviate(c.Low), util.Abbreviate(c.Close))
	} else {
		fmt.Fprintf(&b, "24h change: %s\n", util.Percent(pm.PercentChange24h))
	}
	if n := len(pm.Data); n > 0 {
		fmt.Fprintf(&b, "Weekly series: %d weeks, first %s, last %s\n",
			n, util.Abbreviate(pm.Data[0].Value), util.Abbreviate(pm.Data[n-1].Value))
	}
	b.WriteString(`
Cover, in about 150 words:
What this metric measures and what the current reading indicates.
How significant the recent change is.
The likely implication for the market.
Where this reading usually sits in the market cycle and what tends to follow.`)
	return b.String()
}

func summaryPrompt(analyses []models.Analysis, asset models.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write an executive summary of about 200 words for %s (%s) based on these metric analyses.\n\n",
		asset.Name, strings.ToUpper(asset.Symbol))
	for _, a := range analyses {
		fmt.Fprintf(&b, "%s:\n%s\n\n", a.Title, a.Content)
	}
	b.WriteString("Close with the overall outlook in one or two sentences.")
	return b.String()
}

func title(spec models.MetricSpec) string {
	if spec.Title != "" {
		return spec.Title
	}
	return util.Humanize(spec.Name)
}

func countVotes(score models.AggregateScore) int {
	n := 0
	for _, s := range score.IndividualScores {
		if s != models.ScoreNeutral {
			n++
		}
	}
	return n
}

var _ domsvc.NarrativeGenerator = (*Generator)(nil)
