package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"companion-api/internal/pkg/errors"
)

// AnalysisInput is what the chat and analysis endpoints hand to the
// provider: free text, an image URL, or both.
type AnalysisInput struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

type AnalysisResult struct {
	Reply    string                 `json:"reply"`
	Analysis map[string]interface{} `json:"analysis,omitempty"`
}

// AnalysisService is the opaque provider boundary. The real implementation
// calls out over HTTP; tests inject a stub. ModelName identifies the
// configured model for ledger attribution.
type AnalysisService interface {
	Analyze(ctx context.Context, input AnalysisInput) (*AnalysisResult, error)
	ModelName() string
}

type httpAnalysisService struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewAnalysisService() AnalysisService {
	baseURL := os.Getenv("ANALYSIS_PROVIDER_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := os.Getenv("ANALYSIS_MODEL")
	if model == "" {
		model = "companion-v1"
	}
	return &httpAnalysisService{
		baseURL: baseURL,
		apiKey:  os.Getenv("ANALYSIS_PROVIDER_API_KEY"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *httpAnalysisService) ModelName() string {
	return s.model
}

func (s *httpAnalysisService) Analyze(ctx context.Context, input AnalysisInput) (*AnalysisResult, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.ErrAnalysisProviderDown
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrAnalysisProviderDown
	}

	var result AnalysisResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to decode analysis response")
	}
	return &result, nil
}
