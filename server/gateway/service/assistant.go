package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	commonlog "voice_gateway/server/common/log"
	"voice_gateway/server/gateway/domain"
)

const (
	DefaultSystemPrompt = "You are a helpful Arabic Saudi assistant. Be clear and concise."
	DefaultTopK         = 5

	// emptyReplyPlaceholder is spoken when the model returns nothing.
	emptyReplyPlaceholder = "—"
)

var ErrNoSpeech = errors.New("no speech detected")

type ChatModel interface {
	Chat(ctx context.Context, system, user, contextText string) (string, error)
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) (string, []domain.Source, error)
}

type Speech interface {
	SpeechToText(ctx context.Context, audio []byte) (string, error)
	TextToSpeech(ctx context.Context, text string) ([]byte, string, error)
}

// SpeechFactory builds a speech client per call, so a missing speech setting
// fails only the speech endpoints.
type SpeechFactory func() (Speech, error)

type Assistant struct {
	retriever    ContextRetriever
	chat         ChatModel
	newSpeech    SpeechFactory
	systemPrompt string
}

func NewAssistant(retriever ContextRetriever, chat ChatModel, newSpeech SpeechFactory, systemPrompt string) *Assistant {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Assistant{retriever: retriever, chat: chat, newSpeech: newSpeech, systemPrompt: systemPrompt}
}

// Chat answers req.Message, retrieving context first when req.UseRAG is set.
// A failed retrieval fails the request; there is no fallback to a plain answer.
func (a *Assistant) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	result := domain.ChatResult{Sources: []domain.Source{}}
	if req.UseRAG {
		contextText, sources, err := a.retriever.Retrieve(ctx, req.Message, req.TopK)
		if err != nil {
			return domain.ChatResult{}, fmt.Errorf("retrieve context: %w", err)
		}
		result.Context = contextText
		result.Sources = sources
	}

	answer, err := a.chat.Chat(ctx, a.systemPrompt, req.Message, result.Context)
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("chat completion: %w", err)
	}
	result.Answer = answer
	return result, nil
}

func (a *Assistant) SpeechToText(ctx context.Context, audio []byte) (string, error) {
	speech, err := a.newSpeech()
	if err != nil {
		return "", err
	}
	return speech.SpeechToText(ctx, audio)
}

func (a *Assistant) TextToSpeech(ctx context.Context, text string) ([]byte, string, error) {
	speech, err := a.newSpeech()
	if err != nil {
		return nil, "", err
	}
	return speech.TextToSpeech(ctx, text)
}

// Voice runs one spoken turn: transcribe, answer with retrieval, synthesize.
func (a *Assistant) Voice(ctx context.Context, audio []byte) (domain.VoiceResult, error) {
	speech, err := a.newSpeech()
	if err != nil {
		return domain.VoiceResult{}, err
	}

	transcript, err := speech.SpeechToText(ctx, audio)
	if err != nil {
		return domain.VoiceResult{}, fmt.Errorf("speech to text: %w", err)
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return domain.VoiceResult{}, ErrNoSpeech
	}

	chat, err := a.Chat(ctx, domain.ChatRequest{Message: transcript, UseRAG: true, TopK: DefaultTopK})
	if err != nil {
		return domain.VoiceResult{}, err
	}
	reply := strings.TrimSpace(chat.Answer)
	if reply == "" {
		reply = emptyReplyPlaceholder
	}
	commonlog.Debugf("voice turn transcript=%d chars reply=%d chars sources=%d", len(transcript), len(reply), len(chat.Sources))

	out, contentType, err := speech.TextToSpeech(ctx, reply)
	if err != nil {
		return domain.VoiceResult{}, fmt.Errorf("text to speech: %w", err)
	}
	return domain.VoiceResult{
		Transcript:  transcript,
		Reply:       reply,
		Audio:       out,
		ContentType: contentType,
	}, nil
}
