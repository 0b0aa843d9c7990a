package helper

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by NewProviderConfiguration.
const (
	EnvEmbedders       = "ENTITYSTORE_EMBEDDERS"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOpenAIBaseURL   = "OPENAI_BASE_URL"
	EnvOpenAIModel     = "OPENAI_EMBEDDING_MODEL"
	EnvOllamaBaseURL   = "OLLAMA_BASE_URL"
	EnvOllamaModel     = "OLLAMA_MODEL"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvTranslatorModel = "ENTITYSTORE_TRANSLATOR_MODEL"
)

// ProviderConfiguration selects the embedding providers and the translator.
type ProviderConfiguration struct {
	// Embedders lists the providers to register, e.g. openai,hugot.
	Embedders []string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	OllamaBaseURL string
	OllamaModel   string

	// AnthropicAPIKey enables the translator if set.
	AnthropicAPIKey string
	TranslatorModel string
}

// NewProviderConfiguration reads the provider settings from the environment.
func NewProviderConfiguration() *ProviderConfiguration {
	_ = godotenv.Load()

	var embedders []string
	for _, p := range strings.Split(envOrDefault(EnvEmbedders, "openai"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			embedders = append(embedders, p)
		}
	}

	return &ProviderConfiguration{
		Embedders:       embedders,
		OpenAIAPIKey:    os.Getenv(EnvOpenAIAPIKey),
		OpenAIBaseURL:   os.Getenv(EnvOpenAIBaseURL),
		OpenAIModel:     os.Getenv(EnvOpenAIModel),
		OllamaBaseURL:   os.Getenv(EnvOllamaBaseURL),
		OllamaModel:     os.Getenv(EnvOllamaModel),
		AnthropicAPIKey: os.Getenv(EnvAnthropicAPIKey),
		TranslatorModel: os.Getenv(EnvTranslatorModel),
	}
}
