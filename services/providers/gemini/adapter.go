package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mrpayong/terual-accounting/services/providers"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
	apiKeyHeader   = "x-goog-api-key"

	defaultMaxResponseBytes = 4 << 20
)

var errResponseTooLarge = errors.New("response body too large")

// GeminiAdapter implements the Provider interface for the Gemini generateContent API
type GeminiAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// NewGeminiAdapter creates a new Gemini adapter
func NewGeminiAdapter(config providers.ProviderConfig) *GeminiAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = defaultMaxResponseBytes
	}

	return &GeminiAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

// GenerateContent performs a generateContent request
func (a *GeminiAdapter) GenerateContent(ctx context.Context, req *providers.GenerateRequest) (*providers.GenerateResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.Model
	}

	reqBody, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.config.BaseURL, model)

	var (
		statusCode int
		respBody   []byte
		lastErr    error
	)
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, providers.NewProviderError(a.Name(), "CANCELLED", "Request cancelled", 0, false, ctx.Err())
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		statusCode, respBody, lastErr = a.do(ctx, url, reqBody)
		if errors.Is(lastErr, errResponseTooLarge) {
			return nil, providers.NewProviderError(a.Name(), "RESPONSE_TOO_LARGE",
				fmt.Sprintf("Response exceeds %d bytes", a.config.MaxResponseBytes), statusCode, false, lastErr)
		}
		if lastErr == nil && statusCode < 500 && statusCode != http.StatusTooManyRequests {
			break
		}
	}

	if lastErr != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, lastErr)
	}
	if statusCode != http.StatusOK {
		return nil, a.handleErrorResponse(statusCode, respBody)
	}

	return a.parseResponse(respBody, model, time.Since(startTime))
}

func (a *GeminiAdapter) do(ctx context.Context, url string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, a.config.MaxResponseBytes+1))
	if err != nil {
		return httpResp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(respBody)) > a.config.MaxResponseBytes {
		return httpResp.StatusCode, nil, errResponseTooLarge
	}
	return httpResp.StatusCode, respBody, nil
}

// IsAvailable checks if the model endpoint answers
func (a *GeminiAdapter) IsAvailable(ctx context.Context) bool {
	if a.config.APIKey == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/models/%s", a.config.BaseURL, a.config.Model), nil)
	if err != nil {
		return false
	}
	req.Header.Set(apiKeyHeader, a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (a *GeminiAdapter) buildRequest(req *providers.GenerateRequest) *generateContentRequest {
	content := geminiContent{Role: "user", Parts: make([]geminiPart, 0, len(req.Parts))}
	for _, p := range req.Parts {
		if len(p.Data) > 0 {
			content.Parts = append(content.Parts, geminiPart{InlineData: &geminiBlob{
				MIMEType: p.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		content.Parts = append(content.Parts, geminiPart{Text: p.Text})
	}

	out := &generateContentRequest{Contents: []geminiContent{content}}
	if req.ResponseMIMEType != "" || req.Temperature != nil {
		out.GenerationConfig = &generationConfig{
			ResponseMIMEType: req.ResponseMIMEType,
			Temperature:      req.Temperature,
		}
	}
	return out
}

// parseResponse concatenates the text parts of the first candidate
func (a *GeminiAdapter) parseResponse(body []byte, model string, latency time.Duration) (*providers.GenerateResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Response is not JSON", http.StatusOK, false, nil)
	}
	doc := gjson.ParseBytes(body)

	if reason := doc.Get("promptFeedback.blockReason").String(); reason != "" {
		return nil, providers.NewProviderError(a.Name(), "BLOCKED", "Prompt blocked: "+reason, http.StatusOK, false, nil)
	}

	candidate := doc.Get("candidates.0")
	if !candidate.Exists() {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Response has no candidates", http.StatusOK, false, nil)
	}

	var text strings.Builder
	for _, part := range candidate.Get("content.parts.#.text").Array() {
		text.WriteString(part.String())
	}

	if modelVersion := doc.Get("modelVersion").String(); modelVersion != "" {
		model = modelVersion
	}

	return &providers.GenerateResponse{
		Text:         text.String(),
		Model:        model,
		Provider:     a.Name(),
		FinishReason: candidate.Get("finishReason").String(),
		Latency:      latency,
	}, nil
}

// handleErrorResponse maps a Google API error body to a ProviderError
func (a *GeminiAdapter) handleErrorResponse(statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, retryable, nil)
	}
	code := gjson.GetBytes(body, "error.status").String()
	return providers.NewProviderError(a.Name(), code, msg, statusCode, retryable, errors.New(msg))
}

// Gemini-specific request types

type generateContentRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}
