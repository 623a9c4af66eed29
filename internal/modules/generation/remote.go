package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/threadbrief/core/internal/models"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"go.uber.org/zap"
)

const (
	generationMaxTokens = 900
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultClaudeModel  = "claude-haiku-4-5-20251001"
)

// RemoteConfig describes the configured text-generation provider.
type RemoteConfig struct {
	Provider string // "openai" | "anthropic" | "openai-compatible"
	APIKey   string
	Endpoint string
	Model    string
}

// RemoteBackend makes a single call to the configured provider per Generate.
// Both SDK clients are built with MaxRetries(0): retry policy is owned by
// the caller, never by the backend.
type RemoteBackend struct {
	cfg   RemoteConfig
	model jetapi.LanguageModel // nil for the openai-compatible raw HTTP path
	httpc *http.Client
	log   *zap.Logger
}

func NewRemoteBackend(cfg RemoteConfig, log *zap.Logger) (*RemoteBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("generation: remote backend requires an api key")
	}
	if log == nil {
		log = zap.NewNop()
	}

	b := &RemoteBackend{cfg: cfg, httpc: &http.Client{}, log: log}
	switch normalizeProviderType(cfg.Provider) {
	case "openai-compatible", "openaicompatible":
		// Raw chat-completions POST; no SDK model needed.
	case "anthropic":
		modelID := strings.TrimSpace(cfg.Model)
		if modelID == "" {
			modelID = defaultClaudeModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
			anthropicoption.WithMaxRetries(0),
		}
		if ep := strings.TrimSpace(cfg.Endpoint); ep != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(ep, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		b.model = jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
	default: // openai
		modelID := strings.TrimSpace(cfg.Model)
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
			openaioption.WithMaxRetries(0),
		}
		if normalized := normalizeOpenAIBaseURL(cfg.Endpoint); normalized != "" {
			opts = append(opts, openaioption.WithBaseURL(normalized))
		}
		client := openaiclient.NewClient(opts...)
		b.model = jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	}
	return b, nil
}

func (b *RemoteBackend) Generate(ctx context.Context, prompt string, _ models.ModeType, _ models.LengthType) (*Result, error) {
	start := time.Now()

	var text string
	var err error
	if b.model != nil {
		text, err = b.generateSDK(ctx, prompt)
	} else {
		text, err = b.generateCompatible(ctx, prompt)
	}
	latency := time.Since(start)
	if err != nil {
		return nil, classifyBackendErr(err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, &BackendError{Transient: true, Err: errors.New("empty response from provider")}
	}

	b.log.Debug("remote generation complete", zap.Duration("latency", latency), zap.Int("chars", len(text)))
	return &Result{Text: text, Backend: KindRemote, Latency: latency}, nil
}

func (b *RemoteBackend) generateSDK(ctx context.Context, prompt string) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		[]jetapi.Message{&jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)}},
		jetai.WithModel(b.model),
		jetai.WithMaxOutputTokens(generationMaxTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("nil response from provider")
	}
	var full strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.(*jetapi.TextBlock); ok {
			full.WriteString(tb.Text)
		}
	}
	return full.String(), nil
}

// statusError carries an HTTP status for the raw chat-completions path so
// classifyBackendErr can sort transient from permanent.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

func (b *RemoteBackend) generateCompatible(ctx context.Context, prompt string) (string, error) {
	endpoint := normalizeCompatibleEndpoint(b.cfg.Endpoint)
	model := strings.TrimSpace(b.cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": generationMaxTokens,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(b.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &statusError{status: resp.StatusCode, body: snippet(string(respBody), 200)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errors.New("empty response from provider")
	}
	return result.Choices[0].Message.Content, nil
}

// classifyBackendErr maps provider failures onto the transient/permanent
// split: 5xx, 429 and timeouts are transient; remaining 4xx (auth,
// validation) are permanent; unknown transport failures count as transient.
func classifyBackendErr(err error) *BackendError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &BackendError{Transient: true, Err: err}
	}

	status := 0
	var se *statusError
	var oaiErr *openaiclient.Error
	var antErr *anthropicclient.Error
	switch {
	case errors.As(err, &se):
		status = se.status
	case errors.As(err, &oaiErr):
		status = oaiErr.StatusCode
	case errors.As(err, &antErr):
		status = antErr.StatusCode
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return &BackendError{Transient: false, Err: err}
	}
	return &BackendError{Transient: true, Err: err}
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		path += "/v1"
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeCompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}
	base = strings.TrimRight(base, "/")
	return strings.TrimSuffix(base, "/v1")
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
