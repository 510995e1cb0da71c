package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/docuflow/intake-api/internal/models"
)

// AnalysisRequest carries OCR output into the AI field-extraction backend.
type AnalysisRequest struct {
	DocumentID string            `json:"document_id"`
	Category   string            `json:"category"`
	Text       string            `json:"text"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// AnalysisClient runs AI-driven structured-field extraction.
type AnalysisClient interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*models.AnalysisResult, error)
}

// HTTPAnalysisClient calls an external analysis service over HTTP.
type HTTPAnalysisClient struct {
	url    string
	client *http.Client
}

// NewHTTPAnalysisClient constructs a client for the configured analysis endpoint.
func NewHTTPAnalysisClient(url string) *HTTPAnalysisClient {
	return &HTTPAnalysisClient{url: url, client: &http.Client{}}
}

// Analyze posts the OCR output and decodes the structured extraction payload.
func (c *HTTPAnalysisClient) Analyze(ctx context.Context, analysisReq AnalysisRequest) (*models.AnalysisResult, error) {
	body, err := json.Marshal(analysisReq)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("analysis request: %w", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("analysis service returned %d", resp.StatusCode)
		if classifyStatus(resp.StatusCode) {
			return nil, Transient(err)
		}
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}
	return &result, nil
}
