package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OCRResult is the raw text/field extraction for one document.
type OCRResult struct {
	Text      string            `json:"text"`
	Fields    map[string]string `json:"fields,omitempty"`
	PageCount int               `json:"page_count"`
}

// OCRClient extracts raw text from stored document bytes.
type OCRClient interface {
	Extract(ctx context.Context, mimeType string, data []byte) (*OCRResult, error)
}

// HTTPOCRClient calls an external OCR service over HTTP.
type HTTPOCRClient struct {
	url    string
	client *http.Client
}

// NewHTTPOCRClient constructs a client for the configured OCR endpoint.
// Per-call deadlines come from the caller's context, so no client timeout is set.
func NewHTTPOCRClient(url string) *HTTPOCRClient {
	return &HTTPOCRClient{url: url, client: &http.Client{}}
}

// Extract posts the document bytes and decodes the OCR payload.
func (c *HTTPOCRClient) Extract(ctx context.Context, mimeType string, data []byte) (*OCRResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("ocr request: %w", err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ocr service returned %d", resp.StatusCode)
		if classifyStatus(resp.StatusCode) {
			return nil, Transient(err)
		}
		return nil, err
	}

	var result OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return &result, nil
}
