package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shirayu/docent/pkg/adapter"
	"github.com/shirayu/docent/pkg/service/retriever"
	"github.com/shirayu/docent/pkg/session"
	"github.com/shirayu/docent/pkg/usecase/chatbot"
	"github.com/shirayu/docent/pkg/usecase/ingest"
	"github.com/shirayu/docent/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	configFile string
	logLevel   string

	// Gemini
	geminiProject   string
	geminiLocation  string
	generativeModel string
	embeddingModel  string
	embeddingDims   int64

	// Qdrant
	qdrantURL        string
	qdrantCollection string
	qdrantAPIKey     string

	// Twilio
	twilioAccountSID string
	twilioAuthToken  string
	twilioFrom       string

	// Sessions
	sessionMaxHistory int64
	sessionTimeout    time.Duration

	// Orchestrator
	historyWindow int64
	retrievalK    int64
	callTimeout   time.Duration
	minScore      float64
}

// globalFlags returns flags shared by every command with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("DOCENT_CONFIG"),
			Destination: &cfg.configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("DOCENT_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// geminiFlags returns flags for the Gemini backend with destination config
func geminiFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("DOCENT_GEMINI_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("DOCENT_GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "generative-model",
			Usage:       "Model used for answer generation",
			Sources:     cli.EnvVars("DOCENT_GENERATIVE_MODEL"),
			Destination: &cfg.generativeModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Model used for embeddings",
			Sources:     cli.EnvVars("DOCENT_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dims",
			Usage:       "Embedding dimensionality (0 uses the model default)",
			Sources:     cli.EnvVars("DOCENT_EMBEDDING_DIMS"),
			Destination: &cfg.embeddingDims,
		},
	}
}

// qdrantFlags returns flags for the vector index with destination config
func qdrantFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "qdrant-url",
			Usage:       "Qdrant server URL",
			Sources:     cli.EnvVars("DOCENT_QDRANT_URL"),
			Destination: &cfg.qdrantURL,
		},
		&cli.StringFlag{
			Name:        "qdrant-collection",
			Usage:       "Qdrant collection name",
			Value:       "documents",
			Sources:     cli.EnvVars("DOCENT_QDRANT_COLLECTION"),
			Destination: &cfg.qdrantCollection,
		},
		&cli.StringFlag{
			Name:        "qdrant-api-key",
			Usage:       "Qdrant API key",
			Sources:     cli.EnvVars("DOCENT_QDRANT_API_KEY"),
			Destination: &cfg.qdrantAPIKey,
		},
	}
}

// twilioFlags returns flags for the messaging gateway with destination config
func twilioFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "twilio-account-sid",
			Usage:       "Twilio account SID",
			Sources:     cli.EnvVars("DOCENT_TWILIO_ACCOUNT_SID", "TWILIO_ACCOUNT_SID"),
			Destination: &cfg.twilioAccountSID,
		},
		&cli.StringFlag{
			Name:        "twilio-auth-token",
			Usage:       "Twilio auth token",
			Sources:     cli.EnvVars("DOCENT_TWILIO_AUTH_TOKEN", "TWILIO_AUTH_TOKEN"),
			Destination: &cfg.twilioAuthToken,
		},
		&cli.StringFlag{
			Name:        "twilio-from",
			Usage:       "Sending WhatsApp number, e.g. +14155238886",
			Sources:     cli.EnvVars("DOCENT_TWILIO_FROM"),
			Destination: &cfg.twilioFrom,
		},
	}
}

// chatbotFlags returns flags for session and pipeline tuning with destination config
func chatbotFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "session-max-history",
			Usage:       "Maximum exchanges retained per conversation",
			Value:       session.DefaultMaxHistory,
			Sources:     cli.EnvVars("DOCENT_SESSION_MAX_HISTORY"),
			Destination: &cfg.sessionMaxHistory,
		},
		&cli.DurationFlag{
			Name:        "session-timeout",
			Usage:       "Idle duration after which a conversation expires",
			Value:       session.DefaultTimeout,
			Sources:     cli.EnvVars("DOCENT_SESSION_TIMEOUT"),
			Destination: &cfg.sessionTimeout,
		},
		&cli.IntFlag{
			Name:        "history-window",
			Usage:       "Recent exchanges included in each prompt",
			Value:       chatbot.DefaultHistoryWindow,
			Sources:     cli.EnvVars("DOCENT_HISTORY_WINDOW"),
			Destination: &cfg.historyWindow,
		},
		&cli.IntFlag{
			Name:        "retrieval-k",
			Usage:       "Document chunks retrieved per question",
			Value:       chatbot.DefaultRetrievalK,
			Sources:     cli.EnvVars("DOCENT_RETRIEVAL_K"),
			Destination: &cfg.retrievalK,
		},
		&cli.DurationFlag{
			Name:        "call-timeout",
			Usage:       "Timeout for each retrieval and generation call",
			Value:       chatbot.DefaultCallTimeout,
			Sources:     cli.EnvVars("DOCENT_CALL_TIMEOUT"),
			Destination: &cfg.callTimeout,
		},
		&cli.FloatFlag{
			Name:        "min-score",
			Usage:       "Minimum similarity score for retrieved chunks",
			Sources:     cli.EnvVars("DOCENT_MIN_SCORE"),
			Destination: &cfg.minScore,
		},
	}
}

// fileConfig mirrors the connection settings that may come from a YAML
// file instead of flags or environment variables.
type fileConfig struct {
	Gemini struct {
		Project         string `yaml:"project"`
		Location        string `yaml:"location"`
		GenerativeModel string `yaml:"generative_model"`
		EmbeddingModel  string `yaml:"embedding_model"`
	} `yaml:"gemini"`
	Qdrant struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
		APIKey     string `yaml:"api_key"`
	} `yaml:"qdrant"`
	Twilio struct {
		AccountSID string `yaml:"account_sid"`
		AuthToken  string `yaml:"auth_token"`
		From       string `yaml:"from"`
	} `yaml:"twilio"`
}

// loadFile merges settings from the YAML config file. Flags and
// environment variables take precedence: the file only fills values
// that are still empty.
func (cfg *config) loadFile() error {
	if cfg.configFile == "" {
		return nil
	}

	raw, err := os.ReadFile(cfg.configFile)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configFile))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configFile))
	}

	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	fill(&cfg.geminiProject, fc.Gemini.Project)
	fill(&cfg.geminiLocation, fc.Gemini.Location)
	fill(&cfg.generativeModel, fc.Gemini.GenerativeModel)
	fill(&cfg.embeddingModel, fc.Gemini.EmbeddingModel)
	fill(&cfg.qdrantURL, fc.Qdrant.URL)
	fill(&cfg.qdrantCollection, fc.Qdrant.Collection)
	fill(&cfg.qdrantAPIKey, fc.Qdrant.APIKey)
	fill(&cfg.twilioAccountSID, fc.Twilio.AccountSID)
	fill(&cfg.twilioAuthToken, fc.Twilio.AuthToken)
	fill(&cfg.twilioFrom, fc.Twilio.From)

	return nil
}

// setup loads the config file and installs the process logger. Every
// command action calls it first.
func (cfg *config) setup(ctx context.Context) (context.Context, error) {
	if err := cfg.loadFile(); err != nil {
		return ctx, err
	}

	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.generativeModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.generativeModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}
	if cfg.embeddingDims > 0 {
		opts = append(opts, adapter.WithEmbeddingDims(int32(cfg.embeddingDims)))
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini adapter")
	}
	return gemini, nil
}

// newVectorIndex creates a new Qdrant adapter instance
func (cfg *config) newVectorIndex() (*adapter.QdrantClient, error) {
	index, err := adapter.NewQdrant(adapter.QdrantConfig{
		URL:        cfg.qdrantURL,
		Collection: cfg.qdrantCollection,
		APIKey:     cfg.qdrantAPIKey,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant adapter")
	}
	return index, nil
}

// newRetriever builds the retrieval service on top of the adapters
func (cfg *config) newRetriever(gemini *adapter.GeminiClient, index adapter.VectorIndex) retriever.Retriever {
	var opts []retriever.Option
	if cfg.minScore > 0 {
		opts = append(opts, retriever.WithMinScore(cfg.minScore))
	}
	return retriever.New(gemini, index, opts...)
}

// newMessenger creates the Twilio gateway, or nil when not configured
func (cfg *config) newMessenger() (adapter.Messenger, error) {
	if cfg.twilioAccountSID == "" && cfg.twilioAuthToken == "" && cfg.twilioFrom == "" {
		return nil, nil
	}
	messenger, err := adapter.NewTwilio(cfg.twilioAccountSID, cfg.twilioAuthToken, cfg.twilioFrom)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create twilio adapter")
	}
	return messenger, nil
}

// newStore creates the in-memory session store
func (cfg *config) newStore() *session.Store {
	return session.New(
		session.WithMaxHistory(int(cfg.sessionMaxHistory)),
		session.WithTimeout(cfg.sessionTimeout),
	)
}

// newChatbot assembles the full answering pipeline
func (cfg *config) newChatbot(ctx context.Context) (*chatbot.UseCase, *adapter.QdrantClient, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := cfg.newVectorIndex()
	if err != nil {
		return nil, nil, err
	}

	chat := chatbot.New(cfg.newStore(), cfg.newRetriever(gemini, index), gemini,
		chatbot.WithHistoryWindow(int(cfg.historyWindow)),
		chatbot.WithRetrievalK(int(cfg.retrievalK)),
		chatbot.WithCallTimeout(cfg.callTimeout),
	)
	return chat, index, nil
}

// newIngest assembles the document indexing pipeline
func (cfg *config) newIngest(ctx context.Context, chunkSize, chunkOverlap int64) (*ingest.UseCase, *adapter.QdrantClient, error) {
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}

	index, err := cfg.newVectorIndex()
	if err != nil {
		return nil, nil, err
	}

	uc := ingest.New(gemini, index,
		ingest.WithChunkSize(int(chunkSize)),
		ingest.WithChunkOverlap(int(chunkOverlap)),
	)
	return uc, index, nil
}
