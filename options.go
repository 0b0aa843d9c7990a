package entitystore

import (
	"log/slog"

	"github.com/siherrmann/entitystore/core/pipeline"
	"github.com/siherrmann/entitystore/core/translate"
	"github.com/siherrmann/entitystore/database"
)

type options struct {
	embedders  map[string]pipeline.Embedder
	translator translate.Translator
	graph      string
	noGraph    bool
	logger     *slog.Logger
	pageSize   int
	dispatcher pipeline.DispatcherConfig
}

func defaultOptions() *options {
	return &options{
		embedders:  map[string]pipeline.Embedder{},
		pageSize:   database.DefaultPageSize,
		dispatcher: pipeline.DefaultDispatcherConfig(),
	}
}

// Option configures a Store.
type Option func(*options)

// WithEmbedder registers the embedder of a provider. Its dimension sizes
// the vector columns of fields using the provider.
func WithEmbedder(provider string, embedder pipeline.Embedder) Option {
	return func(o *options) {
		o.embedders[provider] = embedder
	}
}

// WithEmbedders registers several embedders at once.
func WithEmbedders(embedders map[string]pipeline.Embedder) Option {
	return func(o *options) {
		for p, e := range embedders {
			o.embedders[p] = e
		}
	}
}

// WithTranslator sets the translator used by Ask and AskGraph.
func WithTranslator(translator translate.Translator) Option {
	return func(o *options) {
		o.translator = translator
	}
}

// WithGraph mirrors identity entities into the named graph.
func WithGraph(graph string) Option {
	return func(o *options) {
		o.graph = graph
		o.noGraph = false
	}
}

// WithoutGraph disables the graph mirror.
func WithoutGraph() Option {
	return func(o *options) {
		o.noGraph = true
	}
}

// WithLogger replaces the default pretty logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPageSize sets the number of rows per upsert statement.
func WithPageSize(pageSize int) Option {
	return func(o *options) {
		o.pageSize = pageSize
	}
}

// WithQueueSize sets the number of batches the embedding queue holds.
func WithQueueSize(size int) Option {
	return func(o *options) {
		o.dispatcher.QueueSize = size
	}
}

// WithDispatcherConfig replaces the embedding dispatcher configuration.
func WithDispatcherConfig(config pipeline.DispatcherConfig) Option {
	return func(o *options) {
		o.dispatcher = config
	}
}
