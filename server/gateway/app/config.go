package app

import (
	"time"

	cmnenv "voice_gateway/server/common/env"
	commonlog "voice_gateway/server/common/log"
	"voice_gateway/server/gateway/service"
)

type LiveKitConfig struct {
	URL             string
	APIKey          string
	APISecret       string
	DefaultRoom     string
	TokenTTLMinutes int
}

type Config struct {
	Env          string
	Port         string
	CORSOrigins  []string
	SystemPrompt string

	// MetricsEnabled exposes GET /metrics. Collectors record either way.
	MetricsEnabled bool

	LiveKit     LiveKitConfig
	AzureOpenAI service.AzureOpenAIConfig
	Qdrant      service.QdrantConfig
	Hamsa       service.HamsaConfig
}

// LoadConfig reads ENV_FILE (default .env) into the environment without
// overriding variables that are already set, then builds the config.
func LoadConfig() Config {
	envFile := cmnenv.String("ENV_FILE", ".env")
	if err := cmnenv.Load(envFile); err != nil {
		commonlog.Warnf("load env file %s: %v", envFile, err)
	}
	commonlog.Reload()

	return Config{
		Env:            cmnenv.String("APP_ENV", "dev"),
		Port:           cmnenv.String("PORT", "8000"),
		CORSOrigins:    cmnenv.CSV("CORS_ALLOWED_ORIGINS", []string{"*"}),
		SystemPrompt:   cmnenv.String("CHAT_SYSTEM_PROMPT", service.DefaultSystemPrompt),
		MetricsEnabled: cmnenv.Bool("METRICS_ENABLED", true),
		LiveKit: LiveKitConfig{
			URL:             cmnenv.String("LIVEKIT_URL", "ws://127.0.0.1:7880/rtc"),
			APIKey:          cmnenv.String("LIVEKIT_API_KEY", ""),
			APISecret:       cmnenv.String("LIVEKIT_API_SECRET", ""),
			DefaultRoom:     cmnenv.String("DEFAULT_ROOM", "demo-room"),
			TokenTTLMinutes: cmnenv.Int("LIVEKIT_TOKEN_TTL_MINUTES", 360),
		},
		AzureOpenAI: service.AzureOpenAIConfig{
			Endpoint:             cmnenv.String("AZURE_OPENAI_ENDPOINT", ""),
			APIKey:               cmnenv.First("", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_KEY"),
			APIVersion:           cmnenv.String("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),
			ChatDeployment:       cmnenv.First("", "AZURE_OPENAI_DEPLOYMENT", "AZURE_OPENAI_CHAT_DEPLOYMENT"),
			EmbeddingsDeployment: cmnenv.String("AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT", ""),
			Timeout:              cmnenv.Seconds("AZURE_OPENAI_TIMEOUT_SECONDS", 60*time.Second),
		},
		Qdrant: service.QdrantConfig{
			URL:        cmnenv.String("QDRANT_URL", "http://127.0.0.1:6333"),
			APIKey:     cmnenv.String("QDRANT_API_KEY", ""),
			Collection: cmnenv.String("QDRANT_COLLECTION", "saudi_knowledge"),
			GRPCPort:   cmnenv.Int("QDRANT_GRPC_PORT", 0),
		},
		Hamsa: service.HamsaConfig{
			APIKey:   cmnenv.String("HAMSA_API_KEY", ""),
			STTURL:   cmnenv.String("HAMSA_STT_URL", ""),
			TTSURL:   cmnenv.String("HAMSA_TTS_URL", ""),
			Language: cmnenv.String("HAMSA_LANGUAGE", "ar"),
			Dialect:  cmnenv.String("HAMSA_DIALECT", "ksa"),
			Speaker:  cmnenv.String("HAMSA_SPEAKER", ""),
		},
	}
}
