package openai

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/slides-explainer/internal/llm"
)

// DefaultSystemPrompt is the instruction sent ahead of every slide.
const DefaultSystemPrompt = "Can you explain the slides in basic English, and provide examples if needed!"

// Config for the OpenAI client.
type Config struct {
	APIKey       string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL      string        // default https://api.openai.com/v1
	Model        string        // e.g., "gpt-3.5-turbo"
	Temperature  float32       // 0..2
	Timeout      time.Duration // http client timeout
	SystemPrompt string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
	schemaMap  map[string]any
	schema     *jsonschema.Schema
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	schemaMap := llm.BuildExplanationJSONSchema()
	schema, err := llm.CompileSchema(schemaMap)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
		schemaMap:  schemaMap,
		schema:     schema,
	}, nil
}
