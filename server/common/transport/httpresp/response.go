package httpresp

const (
	ErrInvalidBody    = "invalid request body"
	ErrMissingAudio   = "missing audio file"
	ErrNoSpeech       = "no speech detected"
	ErrQdrantNotReady = "vector store unavailable"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type TextResponse struct {
	Text string `json:"text"`
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

func NewOKResponse() OKResponse {
	return OKResponse{OK: true}
}

func NewTextResponse(text string) TextResponse {
	return TextResponse{Text: text}
}
