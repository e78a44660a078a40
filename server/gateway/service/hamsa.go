package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voice_gateway/server/common/apperr"
	"voice_gateway/server/common/metrics"
)

const (
	providerHamsa = "Hamsa"

	speechTimeout    = 90 * time.Second
	eosThreshold     = 0.15
	defaultAudioMIME = "audio/wav"
)

type HamsaConfig struct {
	APIKey   string
	STTURL   string
	TTSURL   string
	Language string
	Dialect  string
	Speaker  string
}

// HamsaClient converts speech to text and text to speech.
type HamsaClient struct {
	cfg     HamsaConfig
	client  *http.Client
	metrics *metrics.Metrics
}

// NewHamsaClient fails with every missing setting listed, not just the first.
func NewHamsaClient(cfg HamsaConfig, m *metrics.Metrics) (*HamsaClient, error) {
	required := []struct {
		name  string
		value string
	}{
		{"HAMSA_API_KEY", cfg.APIKey},
		{"HAMSA_STT_URL", cfg.STTURL},
		{"HAMSA_TTS_URL", cfg.TTSURL},
		{"HAMSA_LANGUAGE", cfg.Language},
		{"HAMSA_DIALECT", cfg.Dialect},
		{"HAMSA_SPEAKER", cfg.Speaker},
	}
	missing := make([]string, 0, len(required))
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NewConfigError(providerHamsa, missing...)
	}
	return &HamsaClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: speechTimeout},
		metrics: m,
	}, nil
}

type sttRequest struct {
	AudioBase64  string  `json:"audioBase64"`
	Language     string  `json:"language"`
	IsEosEnabled bool    `json:"isEosEnabled"`
	EosThreshold float64 `json:"eosThreshold"`
}

// sttResponse covers both {"data":{"text":...}} and a bare {"text":...}.
type sttResponse struct {
	Data json.RawMessage `json:"data"`
	Text *string         `json:"text"`
}

func (h *HamsaClient) SpeechToText(ctx context.Context, audio []byte) (text string, err error) {
	defer func(start time.Time) { h.metrics.ObserveUpstream("hamsa", "stt", start, err) }(time.Now())

	payload := sttRequest{
		AudioBase64:  base64.StdEncoding.EncodeToString(audio),
		Language:     h.cfg.Language,
		IsEosEnabled: true,
		EosThreshold: eosThreshold,
	}
	body, _, err := h.post(ctx, "STT", h.cfg.STTURL, payload)
	if err != nil {
		return "", err
	}

	var resp sttResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", apperr.NewProviderError(providerHamsa, "STT", fmt.Errorf("decode response: %w", err))
	}
	var data struct {
		Text *string `json:"text"`
	}
	if isJSONObject(resp.Data) && json.Unmarshal(resp.Data, &data) == nil {
		if data.Text != nil {
			return *data.Text, nil
		}
		return "", nil
	}
	if resp.Text != nil {
		return *resp.Text, nil
	}
	return "", nil
}

type ttsRequest struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker"`
	Dialect string `json:"dialect"`
	Mulaw   bool   `json:"mulaw"`
}

// TextToSpeech returns the audio bytes and the provider's content type.
func (h *HamsaClient) TextToSpeech(ctx context.Context, text string) (audio []byte, contentType string, err error) {
	defer func(start time.Time) { h.metrics.ObserveUpstream("hamsa", "tts", start, err) }(time.Now())

	payload := ttsRequest{
		Text:    text,
		Speaker: h.cfg.Speaker,
		Dialect: h.cfg.Dialect,
		Mulaw:   false,
	}
	body, header, err := h.post(ctx, "TTS", h.cfg.TTSURL, payload)
	if err != nil {
		return nil, "", err
	}
	contentType = header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultAudioMIME
	}
	return body, contentType, nil
}

func (h *HamsaClient) post(ctx context.Context, op, endpoint string, payload any) ([]byte, http.Header, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, nil, apperr.NewProviderError(providerHamsa, op, err)
	}
	req.Header.Set("Authorization", "Token "+h.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, apperr.NewProviderError(providerHamsa, op, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, apperr.NewProviderError(providerHamsa, op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, nil, apperr.NewProviderStatusError(providerHamsa, op, resp.StatusCode, string(responseBody))
	}
	return responseBody, resp.Header, nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
