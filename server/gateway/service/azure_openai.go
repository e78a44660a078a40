package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"voice_gateway/server/common/apperr"
	"voice_gateway/server/common/metrics"
	"voice_gateway/server/gateway/domain"
)

const (
	providerAzureOpenAI = "Azure OpenAI"

	// chatTemperature favours repeatable answers over creative ones.
	chatTemperature = 0.3

	contextInstructionPrefix = "Use this context if relevant:\n"
)

type AzureOpenAIConfig struct {
	Endpoint             string
	APIKey               string
	APIVersion           string
	ChatDeployment       string
	EmbeddingsDeployment string
	Timeout              time.Duration
}

// AzureOpenAIClient serves both the embedding and the chat side of the
// gateway; the two use distinct deployments.
type AzureOpenAIClient struct {
	cfg     AzureOpenAIConfig
	client  openai.Client
	metrics *metrics.Metrics
}

func NewAzureOpenAIClient(cfg AzureOpenAIConfig, m *metrics.Metrics) *AzureOpenAIClient {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := openai.NewClient(
		azure.WithEndpoint(cfg.Endpoint, cfg.APIVersion),
		azure.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	)
	return &AzureOpenAIClient{cfg: cfg, client: client, metrics: m}
}

// Embed returns one vector per input text, in input order.
func (a *AzureOpenAIClient) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	if err := a.checkConfig("AZURE_OPENAI_EMBEDDINGS_DEPLOYMENT", a.cfg.EmbeddingsDeployment); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("embed: at least one input text is required")
	}
	defer func(start time.Time) { a.metrics.ObserveUpstream("azure_openai", "embeddings", start, err) }(time.Now())

	// azure.WithEndpoint routes on the model field, so it carries the deployment name
	resp, err := a.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(a.cfg.EmbeddingsDeployment),
	})
	if err != nil {
		return nil, providerError("embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperr.NewProviderError(providerAzureOpenAI, "embeddings",
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors = make([][]float32, 0, len(data))
	for i, item := range data {
		if len(item.Embedding) == 0 {
			return nil, apperr.NewProviderError(providerAzureOpenAI, "embeddings",
				fmt.Errorf("empty embedding at index %d", i))
		}
		vector := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vector[j] = float32(v)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

// Chat generates an answer. A non-blank context is passed verbatim as a second
// system message ahead of the user message.
func (a *AzureOpenAIClient) Chat(ctx context.Context, system, user, contextText string) (answer string, err error) {
	if err := a.checkConfig("AZURE_OPENAI_DEPLOYMENT", a.cfg.ChatDeployment); err != nil {
		return "", err
	}
	defer func(start time.Time) { a.metrics.ObserveUpstream("azure_openai", "chat", start, err) }(time.Now())

	built := BuildChatMessages(system, user, contextText)
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(built))
	for _, msg := range built {
		if msg.Role == domain.RoleUser {
			messages = append(messages, openai.UserMessage(msg.Content))
			continue
		}
		messages = append(messages, openai.SystemMessage(msg.Content))
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(a.cfg.ChatDeployment),
		Messages:    messages,
		Temperature: openai.Float(chatTemperature),
	})
	if err != nil {
		return "", providerError("chat", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.NewProviderError(providerAzureOpenAI, "chat", fmt.Errorf("response has no choices"))
	}
	// a null content decodes to ""
	return resp.Choices[0].Message.Content, nil
}

func BuildChatMessages(system, user, contextText string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, 3)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	if strings.TrimSpace(contextText) != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: contextInstructionPrefix + contextText})
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: user})
}

func (a *AzureOpenAIClient) checkConfig(deploymentKey, deployment string) error {
	missing := make([]string, 0, 3)
	if a.cfg.Endpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if a.cfg.APIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if strings.TrimSpace(deployment) == "" {
		missing = append(missing, deploymentKey)
	}
	if len(missing) > 0 {
		return apperr.NewConfigError(providerAzureOpenAI, missing...)
	}
	return nil
}

// providerError keeps the HTTP status and error body of an API failure;
// transport and decode failures are wrapped as they are.
func providerError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := strings.TrimSpace(apiErr.RawJSON())
		if body == "" {
			body = apiErr.Message
		}
		return apperr.NewProviderStatusError(providerAzureOpenAI, op, apiErr.StatusCode, body)
	}
	return apperr.NewProviderError(providerAzureOpenAI, op, err)
}
