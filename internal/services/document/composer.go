package document

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/pkg/util"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Composer renders report HTML and converts it to PDF.
type Composer struct {
	pdf          Converter
	dashboardURL string
}

func NewComposer(pdf Converter, dashboardURL string) *Composer {
	return &Composer{pdf: pdf, dashboardURL: dashboardURL}
}

var _ domsvc.DocumentComposer = (*Composer)(nil)

type sectionView struct {
	Title   string
	Current string
	Change  string
	Up      bool
	IsOHLC  bool
	Chart   template.URL
	Blocks  []Block
}

type assetView struct {
	Asset             models.Asset
	Symbol            string
	Score             models.AggregateScore
	BandLabel         string
	BandColor         template.CSS
	SummaryParagraphs []string
	Sections          []sectionView
	GeneratedAt       string
	DashboardURL      string
}

type welcomeView struct {
	Assets       []assetView
	GeneratedAt  string
	DashboardURL string
}

// RenderHTML renders a single-asset report.
func (c *Composer) RenderHTML(doc models.ReportDocument) (string, error) {
	return render("report.html.tmpl", c.assetView(doc))
}

// RenderWelcomeHTML renders the multi-asset welcome report.
func (c *Composer) RenderWelcomeHTML(doc models.WelcomeDocument) (string, error) {
	v := welcomeView{GeneratedAt: stamp(doc.GeneratedAt), DashboardURL: c.dashboardURL}
	for _, d := range doc.Assets {
		v.Assets = append(v.Assets, c.assetView(d))
	}
	return render("welcome.html.tmpl", v)
}

func (c *Composer) Compose(ctx context.Context, doc models.ReportDocument) ([]byte, error) {
	html, err := c.RenderHTML(doc)
	if err != nil {
		return nil, err
	}
	return c.pdf.Convert(ctx, html)
}

func (c *Composer) ComposeWelcome(ctx context.Context, doc models.WelcomeDocument) ([]byte, error) {
	html, err := c.RenderWelcomeHTML(doc)
	if err != nil {
		return nil, err
	}
	return c.pdf.Convert(ctx, html)
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (c *Composer) assetView(doc models.ReportDocument) assetView {
	v := assetView{
		Asset:             doc.Asset,
		Symbol:            strings.ToUpper(doc.Asset.Symbol),
		Score:             doc.Score,
		BandLabel:         doc.Band.Label,
		BandColor:         template.CSS(doc.Band.Color),
		SummaryParagraphs: paragraphs(doc.Summary),
		GeneratedAt:       stamp(doc.GeneratedAt),
		DashboardURL:      c.dashboardURL,
	}
	for _, s := range doc.Sections {
		pm := s.Analysis.Data
		sv := sectionView{
			Title:   s.Analysis.Title,
			Current: util.Abbreviate(pm.CurrentValue),
			Change:  util.Percent(pm.PercentChange24h),
			Up:      pm.PercentChange24h >= 0,
			IsOHLC:  pm.IsOHLC,
			Blocks:  FormatNarrative(s.Analysis.Content),
		}
		if len(s.Chart) > 0 {
			sv.Chart = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(s.Chart))
		}
		v.Sections = append(v.Sections, sv)
	}
	return v
}

func paragraphs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("January 2, 2006 15:04 MST")
}
