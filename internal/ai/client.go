package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Completer turns a prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

type CompletionOptions struct {
	Temperature     float64
	MaxOutputTokens int
	// JSON asks the model for a JSON-only response.
	JSON bool
}

type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	// GeminiBaseURL overrides the public endpoint; used by tests.
	GeminiBaseURL string
}

// NewClient picks a Completer from cfg. Supported providers: "gemini"
// (default when GEMINI_API_KEY is set) and "mock".
func NewClient(cfg Config, logger *slog.Logger) Completer {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		if cfg.GeminiAPIKey != "" {
			provider = "gemini"
		} else {
			provider = "mock"
		}
	}

	switch provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warn("AI_PROVIDER=gemini but GEMINI_API_KEY not set, falling back to mock")
			return NewMockClient()
		}
		logger.Info("using gemini completion client", "model", firstNonEmpty(cfg.GeminiModel, defaultModel))
		g := NewGeminiClient(cfg.GeminiAPIKey)
		if cfg.GeminiModel != "" {
			g.WithModel(cfg.GeminiModel)
		}
		if cfg.GeminiBaseURL != "" {
			g.baseURL = strings.TrimSuffix(cfg.GeminiBaseURL, "/")
		}
		return g
	default:
		logger.Info("using mock completion client (set GEMINI_API_KEY for real output)")
		return NewMockClient()
	}
}

// MockClient echoes a canned answer so the career endpoints work without an
// API key.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if opts.JSON {
		return `["Walk through a system you designed end to end.","How do you debug a production incident?","Which trade-offs did you make in your last project?"]`, nil
	}
	return fmt.Sprintf("Mock completion (%d prompt characters). Set GEMINI_API_KEY for generated text.", len(prompt)), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
