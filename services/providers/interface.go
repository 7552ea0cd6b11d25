package providers

import (
	"context"
	"errors"
	"time"
)

// Provider is a generative model that accepts mixed text and inline-data parts
type Provider interface {
	// Name returns the provider name (e.g., "gemini")
	Name() string

	// GenerateContent sends one prompt and returns the model's text output
	GenerateContent(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is currently available
	IsAvailable(ctx context.Context) bool
}

// Part is one piece of a prompt: text or inline binary data
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart returns a text prompt part
func TextPart(text string) Part {
	return Part{Text: text}
}

// DataPart returns an inline binary prompt part
func DataPart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// GenerateRequest is a single-turn generation request
type GenerateRequest struct {
	// Model overrides the provider's configured model when set
	Model string

	Parts []Part

	// ResponseMIMEType asks the model for a specific output format (e.g. application/json)
	ResponseMIMEType string

	Temperature *float64
}

// GenerateResponse is the text the model produced
type GenerateResponse struct {
	Text         string
	Model        string
	Provider     string
	FinishReason string
	Latency      time.Duration
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Headers    map[string]string

	// MaxResponseBytes caps how much of a response body is read
	MaxResponseBytes int64
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 1 * time.Second,
		Headers:    make(map[string]string),

		MaxResponseBytes: 4 << 20,
	}
}

// ProviderError represents an error from a provider
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}
