package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	domsvc "CoinPulse/internal/domain/service"
	xhttp "CoinPulse/pkg/http"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type sendReq struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type sendResp struct {
	ID string `json:"id"`
}

type Config struct {
	Endpoint     string
	APIKey       string
	From         string
	ChunkSize    int
	Timeout      time.Duration
	DashboardURL string
}

// Client sends mail through a transactional email JSON API.
type Client struct {
	cfg    Config
	client *xhttp.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Client{cfg: cfg, client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout))}
}

var _ domsvc.Mailer = (*Client)(nil)

// Send delivers one message and returns the provider message id.
func (c *Client) Send(ctx context.Context, to []string, subject, html string, attachments ...Attachment) (string, error) {
	if len(to) == 0 {
		return "", fmt.Errorf("send email: no recipients")
	}
	var resp sendResp
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.cfg.Endpoint,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + c.cfg.APIKey,
		},
		Body: sendReq{
			From:        c.cfg.From,
			To:          to,
			Subject:     subject,
			HTML:        html,
			Attachments: attachments,
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return resp.ID, nil
}

func (c *Client) SendReport(ctx context.Context, to []string, doc models.ReportDocument, pdf []byte) error {
	body, err := render("report", map[string]interface{}{
		"Asset":        doc.Asset,
		"Symbol":       strings.ToUpper(doc.Asset.Symbol),
		"Score":        doc.Score.NormalizedScore,
		"Band":         doc.Band.Label,
		"BandColor":    template.CSS(doc.Band.Color),
		"DashboardURL": c.cfg.DashboardURL,
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s (%s) market report: %s", doc.Asset.Name, strings.ToUpper(doc.Asset.Symbol), doc.Band.Label)
	_, err = c.Send(ctx, to, subject, body, c.pdfAttachment(reportFilename(doc.Asset, doc.GeneratedAt), pdf))
	return err
}

type welcomeRow struct {
	Name   string
	Symbol string
	Score  int
	Band   string
}

func (c *Client) SendWelcomeReport(ctx context.Context, to string, doc models.WelcomeDocument, pdf []byte) error {
	rows := make([]welcomeRow, 0, len(doc.Assets))
	for _, d := range doc.Assets {
		rows = append(rows, welcomeRow{
			Name:   d.Asset.Name,
			Symbol: strings.ToUpper(d.Asset.Symbol),
			Score:  d.Score.NormalizedScore,
			Band:   d.Band.Label,
		})
	}
	body, err := render("welcome", map[string]interface{}{
		"Assets":       rows,
		"DashboardURL": c.cfg.DashboardURL,
	})
	if err != nil {
		return err
	}
	name := fmt.Sprintf("coinpulse-welcome-%s.pdf", stampDate(doc.GeneratedAt))
	_, err = c.Send(ctx, []string{to}, "Welcome to CoinPulse: your first market report", body, c.pdfAttachment(name, pdf))
	return err
}

func (c *Client) SendProcessingNotice(ctx context.Context, to []string, assets []models.Asset) error {
	body, err := render("notice", map[string]interface{}{"Assets": assets})
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, to, "Your CoinPulse report is being prepared", body)
	return err
}

func (c *Client) pdfAttachment(name string, pdf []byte) Attachment {
	return Attachment{Filename: name, Content: EncodeBase64Chunked(pdf, c.cfg.ChunkSize)}
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", name, err)
	}
	return buf.String(), nil
}

func reportFilename(a models.Asset, at time.Time) string {
	return fmt.Sprintf("%s-report-%s.pdf", a.Slug, stampDate(at))
}

func stampDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02")
}
