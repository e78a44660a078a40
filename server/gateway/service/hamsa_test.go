package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_gateway/server/common/apperr"
)

func validHamsaConfig(base string) HamsaConfig {
	return HamsaConfig{
		APIKey:   "hamsa-key",
		STTURL:   base + "/stt",
		TTSURL:   base + "/tts",
		Language: "ar",
		Dialect:  "ksa",
		Speaker:  "Majd",
	}
}

func TestNewHamsaClientListsMissingSettings(t *testing.T) {
	all := []string{"HAMSA_API_KEY", "HAMSA_STT_URL", "HAMSA_TTS_URL", "HAMSA_LANGUAGE", "HAMSA_DIALECT", "HAMSA_SPEAKER"}
	blank := func(cfg *HamsaConfig, name string) {
		switch name {
		case "HAMSA_API_KEY":
			cfg.APIKey = ""
		case "HAMSA_STT_URL":
			cfg.STTURL = ""
		case "HAMSA_TTS_URL":
			cfg.TTSURL = ""
		case "HAMSA_LANGUAGE":
			cfg.Language = ""
		case "HAMSA_DIALECT":
			cfg.Dialect = " "
		case "HAMSA_SPEAKER":
			cfg.Speaker = ""
		}
	}

	for _, name := range all {
		t.Run(name, func(t *testing.T) {
			cfg := validHamsaConfig("http://hamsa")
			blank(&cfg, name)

			_, err := NewHamsaClient(cfg, nil)
			var cfgErr *apperr.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, []string{name}, cfgErr.Missing)
			assert.Contains(t, err.Error(), name)
		})
	}

	_, err := NewHamsaClient(HamsaConfig{}, nil)
	var cfgErr *apperr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, all, cfgErr.Missing)
}

func TestSpeechToText(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "nested data text", response: `{"success":true,"message":"success","data":{"text":"مرحبا"}}`, want: "مرحبا"},
		{name: "top level text", response: `{"text":"hello"}`, want: "hello"},
		{name: "data without text", response: `{"data":{"other":1},"text":"ignored"}`, want: ""},
		{name: "null data falls back", response: `{"data":null,"text":"fallback"}`, want: "fallback"},
		{name: "nothing", response: `{}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/stt", r.URL.Path)
				assert.Equal(t, "Token hamsa-key", r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			client, err := NewHamsaClient(validHamsaConfig(srv.URL), nil)
			require.NoError(t, err)

			text, err := client.SpeechToText(context.Background(), []byte("RIFF...."))
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)

			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFF....")), got["audioBase64"])
			assert.Equal(t, "ar", got["language"])
			assert.Equal(t, true, got["isEosEnabled"])
			assert.Equal(t, 0.15, got["eosThreshold"])
		})
	}
}

func TestSpeechToTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	client, err := NewHamsaClient(validHamsaConfig(srv.URL), nil)
	require.NoError(t, err)

	_, err = client.SpeechToText(context.Background(), []byte("x"))
	var providerErr *apperr.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
	assert.Equal(t, "Hamsa STT error 401: invalid token", err.Error())
}

func TestTextToSpeech(t *testing.T) {
	t.Run("provider content type", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/tts", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte{0x49, 0x44, 0x33})
		}))
		defer srv.Close()

		client, err := NewHamsaClient(validHamsaConfig(srv.URL), nil)
		require.NoError(t, err)

		audio, contentType, err := client.TextToSpeech(context.Background(), "أهلا")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x49, 0x44, 0x33}, audio)
		assert.Equal(t, "audio/mpeg", contentType)
		assert.Equal(t, map[string]any{"text": "أهلا", "speaker": "Majd", "dialect": "ksa", "mulaw": false}, got)
	})

	t.Run("default content type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// an explicit empty value stops net/http from sniffing one
			w.Header()["Content-Type"] = []string{""}
			_, _ = w.Write([]byte("RIFF"))
		}))
		defer srv.Close()

		client, err := NewHamsaClient(validHamsaConfig(srv.URL), nil)
		require.NoError(t, err)

		_, contentType, err := client.TextToSpeech(context.Background(), "x")
		require.NoError(t, err)
		assert.Equal(t, "audio/wav", contentType)
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, strings.Repeat("e", 2999)+"tail", http.StatusBadGateway)
		}))
		defer srv.Close()

		client, err := NewHamsaClient(validHamsaConfig(srv.URL), nil)
		require.NoError(t, err)

		_, _, err = client.TextToSpeech(context.Background(), "x")
		var providerErr *apperr.ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, http.StatusBadGateway, providerErr.StatusCode)
		body := strings.Repeat("e", 2999) + "tail"
		assert.Equal(t, body+"\n", providerErr.Body)
		assert.Contains(t, err.Error(), "tail")
	})
}
