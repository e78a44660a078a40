package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voice_gateway/server/common/auth"
	"voice_gateway/server/common/metrics"
	"voice_gateway/server/common/middleware"
	"voice_gateway/server/gateway/api"
	"voice_gateway/server/gateway/service"
)

type Server struct {
	HTTPServer *http.Server
	Router     *gin.Engine
	Metrics    *metrics.Metrics
	Qdrant     *service.QdrantStore
}

func NewServer(cfg Config) (*Server, error) {
	m := metrics.New()

	store, err := service.NewQdrantStore(cfg.Qdrant, m)
	if err != nil {
		return nil, fmt.Errorf("initialize qdrant: %w", err)
	}

	azure := service.NewAzureOpenAIClient(cfg.AzureOpenAI, m)
	retriever := service.NewRetriever(azure, store)
	newSpeech := func() (service.Speech, error) {
		client, err := service.NewHamsaClient(cfg.Hamsa, m)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	assistant := service.NewAssistant(retriever, azure, newSpeech, cfg.SystemPrompt)
	tokens := auth.NewTokenIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.TokenTTLMinutes)

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = m.Handler()
	}
	h := api.NewHandler(assistant, tokens, store, metricsHandler, api.Settings{
		LiveKitURL:  cfg.LiveKit.URL,
		QdrantURL:   cfg.Qdrant.URL,
		DefaultRoom: cfg.LiveKit.DefaultRoom,
	})

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORSOrigins),
	)
	h.RegisterRoutes(r)

	// a voice turn chains STT, chat and TTS, each with its own upstream timeout
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		HTTPServer: httpServer,
		Router:     r,
		Metrics:    m,
		Qdrant:     store,
	}, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTPServer.Shutdown(ctx)
	if s.Qdrant != nil {
		_ = s.Qdrant.Close()
	}
	return err
}
