package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"press-clippings/internal/models"

	"github.com/google/uuid"
)

// ErrNotConfigured is returned when no report service URL is set
var ErrNotConfigured = errors.New("report service not configured")

// Request is the payload sent to the report service
type Request struct {
	Clipping ClippingSummary        `json:"clipping"`
	Topic    string                 `json:"topic"`
	Metrics  models.ClippingMetrics `json:"metrics"`
}

// ClippingSummary identifies the clipping a report is generated for
type ClippingSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

// Result is the report service response, passed through untouched
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Generator produces a report document for a clipping
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// HTTPGenerator posts report requests to an external service
type HTTPGenerator struct {
	url    string
	client *http.Client
}

// NewHTTPGenerator creates a generator for the service at url
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Generate sends req and returns the service's response
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.url == "" {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach report service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Result{StatusCode: resp.StatusCode, ContentType: contentType, Body: body}, nil
}
