package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	commonlog "voice_gateway/server/common/log"
	"voice_gateway/server/gateway/domain"
	"voice_gateway/server/gateway/service"
)

const (
	defaultIdentity = "web-user"
	audioField      = "audio"
	readyTimeout    = 5 * time.Second

	HeaderTranscript = "X-Transcript"
	HeaderReply      = "X-Reply"
)

type Assistant interface {
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error)
	SpeechToText(ctx context.Context, audio []byte) (string, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, string, error)
	Voice(ctx context.Context, audio []byte) (domain.VoiceResult, error)
}

type TokenIssuer interface {
	Issue(room, identity, name string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Settings are the values the handler echoes back or uses as defaults.
type Settings struct {
	LiveKitURL  string
	QdrantURL   string
	DefaultRoom string
}

type Handler struct {
	assistant Assistant
	tokens    TokenIssuer
	vectors   Pinger
	metrics   http.Handler
	settings  Settings
}

func NewHandler(assistant Assistant, tokens TokenIssuer, vectors Pinger, metrics http.Handler, settings Settings) *Handler {
	return &Handler{
		assistant: assistant,
		tokens:    tokens,
		vectors:   vectors,
		metrics:   metrics,
		settings:  settings,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/ready", h.ready)
		api.GET("/token", h.token)
		api.POST("/chat", h.chat)
		api.POST("/stt", h.stt)
		api.POST("/tts", h.tts)
		api.POST("/voice", h.voice)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, NewHealthResponse(h.settings.LiveKitURL, h.settings.QdrantURL))
}

func (h *Handler) ready(c *gin.Context) {
	if h.vectors == nil {
		c.JSON(http.StatusOK, NewOKResponse())
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()
	if err := h.vectors.Ping(ctx); err != nil {
		commonlog.Warnf("readiness check: %v", err)
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(ErrQdrantNotReady))
		return
	}
	c.JSON(http.StatusOK, NewOKResponse())
}

func (h *Handler) token(c *gin.Context) {
	room := c.DefaultQuery("room", h.settings.DefaultRoom)
	identity := c.DefaultQuery("identity", defaultIdentity)
	name := c.Query("name")

	token, err := h.tokens.Issue(room, identity, name)
	if err != nil {
		h.fail(c, "issue token", err)
		return
	}
	c.JSON(http.StatusOK, NewTokenResponse(token, h.settings.LiveKitURL, room, identity))
}

func (h *Handler) chat(c *gin.Context) {
	var req struct {
		Message *string `json:"message"`
		UseRAG  *bool   `json:"use_rag"`
		TopK    *int    `json:"top_k"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if req.Message == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(ErrInvalidBody+": message is required"))
		return
	}
	in := domain.ChatRequest{Message: *req.Message, UseRAG: true, TopK: service.DefaultTopK}
	if req.UseRAG != nil {
		in.UseRAG = *req.UseRAG
	}
	if req.TopK != nil {
		in.TopK = *req.TopK
	}

	result, err := h.assistant.Chat(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "chat", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) stt(c *gin.Context) {
	audio, filename, ok := readAudio(c)
	if !ok {
		return
	}
	commonlog.Infof("stt upload filename=%s bytes=%d", filename, len(audio))

	text, err := h.assistant.SpeechToText(c.Request.Context(), audio)
	if err != nil {
		h.fail(c, "speech to text", err)
		return
	}
	c.JSON(http.StatusOK, NewTextResponse(text))
}

func (h *Handler) tts(c *gin.Context) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	if req.Text == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(ErrInvalidBody+": text is required"))
		return
	}

	audio, contentType, err := h.assistant.TextToSpeech(c.Request.Context(), *req.Text)
	if err != nil {
		h.fail(c, "text to speech", err)
		return
	}
	c.Data(http.StatusOK, contentType, audio)
}

func (h *Handler) voice(c *gin.Context) {
	audio, _, ok := readAudio(c)
	if !ok {
		return
	}

	result, err := h.assistant.Voice(c.Request.Context(), audio)
	if err != nil {
		h.fail(c, "voice", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header(HeaderTranscript, encodeHeader(result.Transcript))
	c.Header(HeaderReply, encodeHeader(result.Reply))
	c.Data(http.StatusOK, result.ContentType, result.Audio)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		commonlog.Errorf("%s: %v", op, err)
	}
	c.JSON(status, NewErrorResponse(err.Error()))
}

// statusFor maps service errors onto HTTP statuses. Missing configuration and
// provider failures are both reported as 500.
func statusFor(err error) int {
	if errors.Is(err, service.ErrNoSpeech) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func readAudio(c *gin.Context) ([]byte, string, bool) {
	header, err := c.FormFile(audioField)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(ErrMissingAudio))
		return nil, "", false
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(ErrMissingAudio))
		return nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return nil, "", false
	}
	return data, header.Filename, true
}

// encodeHeader percent-encodes s so that a browser's decodeURIComponent
// restores it; spaces become %20, never "+".
func encodeHeader(s string) string {
	return url.PathEscape(s)
}
