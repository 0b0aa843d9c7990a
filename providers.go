package entitystore

import (
	"fmt"

	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/schema"
	"github.com/siherrmann/entitystore/core/translate"
	"github.com/siherrmann/entitystore/helper"
)

// NewEmbedders builds the embedders listed in the configuration.
func NewEmbedders(config *helper.ProviderConfiguration) (map[string]pipeline.Embedder, error) {
	embedders := map[string]pipeline.Embedder{}
	for _, provider := range config.Embedders {
		switch provider {
		case schema.ProviderOpenAI:
			e, err := pipeline.NewOpenAIEmbedder(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel, 0)
			if err != nil {
				return nil, helper.NewError("create openai embedder", err)
			}
			embedders[provider] = e
		case schema.ProviderOllama:
			embedders[provider] = pipeline.NewOllamaEmbedder(config.OllamaBaseURL, config.OllamaModel, 0)
		case schema.ProviderHugot:
			e, err := pipeline.NewHugotEmbedder()
			if err != nil {
				return nil, helper.NewError("create hugot embedder", err)
			}
			embedders[provider] = e
		default:
			return nil, helper.NewError("create embedders", fmt.Errorf("unknown embedding provider %q", provider))
		}
	}
	return embedders, nil
}

// NewTranslator returns the Claude translator, or nil if no api key is set.
func NewTranslator(config *helper.ProviderConfiguration) (translate.Translator, error) {
	if config.AnthropicAPIKey == "" {
		return nil, nil
	}
	t, err := translate.NewClaude(config.AnthropicAPIKey, config.TranslatorModel)
	if err != nil {
		return nil, helper.NewError("create translator", err)
	}
	return t, nil
}

// FromEnvironment returns the options configured by the provider
// environment variables.
func FromEnvironment() ([]Option, error) {
	config := helper.NewProviderConfiguration()

	embedders, err := NewEmbedders(config)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithEmbedders(embedders)}

	translator, err := NewTranslator(config)
	if err != nil {
		return nil, err
	}
	if translator != nil {
		opts = append(opts, WithTranslator(translator))
	}

	return opts, nil
}
