package domain

// SearchHit is one nearest-neighbour result. Score is nil when the store did
// not report one.
type SearchHit struct {
	ID      string
	Score   *float64
	Payload map[string]any
}

// Source describes one retrieved hit for attribution.
type Source struct {
	Score  *float64 `json:"score"`
	Source string   `json:"source"`
	Text   string   `json:"text"`
}

type ChatRequest struct {
	Message string
	UseRAG  bool
	TopK    int
}

type ChatResult struct {
	Answer  string   `json:"answer"`
	Context string   `json:"context"`
	Sources []Source `json:"sources"`
}

type VoiceResult struct {
	Transcript  string
	Reply       string
	Audio       []byte
	ContentType string
}

// ChatMessage is one entry of a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)
