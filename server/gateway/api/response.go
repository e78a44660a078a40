package api

import (
	"voice_gateway/server/common/transport/httpresp"
)

const (
	ErrInvalidBody    = httpresp.ErrInvalidBody
	ErrMissingAudio   = httpresp.ErrMissingAudio
	ErrNoSpeech       = httpresp.ErrNoSpeech
	ErrQdrantNotReady = httpresp.ErrQdrantNotReady
)

type ErrorResponse = httpresp.ErrorResponse
type OKResponse = httpresp.OKResponse
type TextResponse = httpresp.TextResponse

type HealthResponse struct {
	OK         bool   `json:"ok"`
	LiveKitURL string `json:"livekit_url"`
	Qdrant     string `json:"qdrant"`
}

type TokenResponse struct {
	Token      string `json:"token"`
	LiveKitURL string `json:"livekitUrl"`
	Room       string `json:"room"`
	Identity   string `json:"identity"`
}

func NewErrorResponse(message string) ErrorResponse {
	return httpresp.NewErrorResponse(message)
}

func NewOKResponse() OKResponse {
	return httpresp.NewOKResponse()
}

func NewTextResponse(text string) TextResponse {
	return httpresp.NewTextResponse(text)
}

func NewHealthResponse(livekitURL, qdrantURL string) HealthResponse {
	return HealthResponse{OK: true, LiveKitURL: livekitURL, Qdrant: qdrantURL}
}

func NewTokenResponse(token, livekitURL, room, identity string) TokenResponse {
	return TokenResponse{Token: token, LiveKitURL: livekitURL, Room: room, Identity: identity}
}
