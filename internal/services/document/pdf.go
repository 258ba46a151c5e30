package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	xhttp "CoinPulse/pkg/http"
)

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// PDFClient posts HTML to an HTML-to-PDF conversion API and returns the
// response body as the PDF.
type PDFClient struct {
	endpoint   string
	apiKey     string
	authHeader string
	format     string
	client     *xhttp.Client
}

type PDFConfig struct {
	Endpoint   string
	APIKey     string
	AuthHeader string
	PageFormat string
	Timeout    time.Duration
}

func NewPDFClient(cfg PDFConfig) *PDFClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = "X-API-Key"
	}
	if cfg.PageFormat == "" {
		cfg.PageFormat = "A4"
	}
	return &PDFClient{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		authHeader: cfg.AuthHeader,
		format:     cfg.PageFormat,
		client:     xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type convertReq struct {
	Source    string `json:"source"`
	Format    string `json:"format"`
	UsePrint  bool   `json:"use_print"`
	Landscape bool   `json:"landscape"`
}

var ErrEmptyPDF = errors.New("pdf api returned an empty document")

func (c *PDFClient) Convert(ctx context.Context, html string) ([]byte, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("pdf client not configured")
	}
	var pdf []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.endpoint,
		Headers: map[string]string{
			"Content-Type": "application/json",
			c.authHeader:   c.apiKey,
		},
		Body: convertReq{Source: html, Format: c.format, UsePrint: true},
	}, &pdf)
	if err != nil {
		return nil, fmt.Errorf("convert pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyPDF
	}
	return pdf, nil
}

var _ Converter = (*PDFClient)(nil)
