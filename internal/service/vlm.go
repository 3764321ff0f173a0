package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrQuotaExhausted is returned when the vision model provider reports that
// the account quota or rate limit has been used up.
var ErrQuotaExhausted = errors.New("vision model quota exhausted")

// VisionClassifier sends one image plus a prompt to a vision model and returns its raw text answer.
type VisionClassifier interface {
	Classify(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// VLMService handles image classification using Vision Language Models.
type VLMService struct {
	client      *resty.Client
	provider    string
	model       string
	apiKey      string
	endpoint    string
	temperature float64
	maxTokens   int
}

// VLMConfig holds configuration for VLM service.
type VLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewVLMService creates a new VLM service.
// Parameters:
//   - cfg: VLM configuration including provider, model, and API key.
//
// Returns:
//   - *VLMService: initialized VLM client wrapper.
func NewVLMService(cfg *VLMConfig) *VLMService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	provider := strings.ToLower(cfg.Provider)
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	var endpoint string
	switch provider {
	case ProviderOpenAI:
		if baseURL == "" {
			baseURL = defaultOpenAIBaseURL
		}
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
		endpoint = baseURL + "/chat/completions"
	default:
		provider = ProviderGemini
		if baseURL == "" {
			baseURL = defaultGeminiBaseURL
		}
		endpoint = fmt.Sprintf("%s/models/%s:generateContent", baseURL, cfg.Model)
	}

	return &VLMService{
		client:      client,
		provider:    provider,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		endpoint:    endpoint,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// GetModel returns the model name being used.
func (s *VLMService) GetModel() string {
	return s.model
}

// GetProvider returns the provider name being used.
func (s *VLMService) GetProvider() string {
	return s.provider
}

// Classify sends the image and prompt to the configured provider.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - image: raw image bytes.
//   - mimeType: MIME type of image.
//   - prompt: instruction text.
//
// Returns:
//   - string: the model's raw text answer.
//   - error: wraps ErrQuotaExhausted on quota errors, non-nil on any other failure.
func (s *VLMService) Classify(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	if s.provider == ProviderOpenAI {
		return s.classifyOpenAI(ctx, image, mimeType, prompt)
	}
	return s.classifyGemini(ctx, image, mimeType, prompt)
}

// Gemini generateContent request/response structures
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (s *VLMService) classifyGemini(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     s.temperature,
			MaxOutputTokens: s.maxTokens,
		},
	}

	var resp geminiResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("key", s.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call VLM API: %w", err)
	}

	status := httpResp.StatusCode()
	if status < 200 || status >= 300 || resp.Error != nil {
		var message, code string
		if resp.Error != nil {
			message, code = resp.Error.Message, resp.Error.Status
		} else {
			message = string(httpResp.Body())
		}
		errorMsg := fmt.Sprintf("HTTP %d: %s", status, message)
		if isQuotaError(status, code, message) {
			return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, errorMsg)
		}
		return "", fmt.Errorf("VLM API returned error: %s", errorMsg)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no response from VLM API: no candidates (status: %d)", status)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIMessage struct {
	Role    string        `json:"role"`
	Content []interface{} `json:"content"`
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (s *VLMService) classifyOpenAI(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	req := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []interface{}{
				openAITextContent{Type: "text", Text: prompt},
				openAIImageContent{
					Type:     "image_url",
					ImageURL: openAIImageURL{URL: dataURL, Detail: "auto"},
				},
			},
		}},
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call VLM API: %w", err)
	}

	status := httpResp.StatusCode()
	if status < 200 || status >= 300 || resp.Error != nil {
		var message, code string
		if resp.Error != nil {
			message = resp.Error.Message
			code = resp.Error.Code
			if code == "" {
				code = resp.Error.Type
			}
		} else {
			message = string(httpResp.Body())
		}
		errorMsg := fmt.Sprintf("HTTP %d: %s", status, message)
		if isQuotaError(status, code, message) {
			return "", fmt.Errorf("%w: %s", ErrQuotaExhausted, errorMsg)
		}
		return "", fmt.Errorf("VLM API returned error: %s", errorMsg)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from VLM API: no choices (status: %d)", status)
	}
	return resp.Choices[0].Message.Content, nil
}

// isQuotaError reports whether a provider failure means the quota is used up.
func isQuotaError(status int, code, message string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	switch strings.ToLower(code) {
	case "resource_exhausted", "insufficient_quota", "rate_limit_exceeded":
		return true
	}
	return strings.Contains(strings.ToLower(message), "quota")
}

// mimeTypeFor maps an image filename to the MIME type sent to the model.
func mimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
