// Package openai adapts the OpenAI API to the provider contract. It is the
// only backend able to serve voice input, by transcribing audio with Whisper
// and then analyzing the transcript as text.
package openai

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/extract"
	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	openaiapi "github.com/pocketledger/expense-cli/pkg/openai"
)

// Name is the provider identifier used in config and routing.
const Name = "openai"

var (
	maxTokens   = 1000
	temperature = 0.1
)

// Adapter translates recognition requests into OpenAI chat completions and,
// for voice input, Whisper transcriptions.
type Adapter struct {
	client     openaiapi.Client
	timeout    time.Duration
	maxRetries int
	nowFunc    func() time.Time
}

// New creates an OpenAI adapter around an API client.
func New(client openaiapi.Client, timeout time.Duration, maxRetries int) *Adapter {
	return &Adapter{
		client:     client,
		timeout:    timeout,
		maxRetries: maxRetries,
		nowFunc:    time.Now,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:           Name,
		HasCredentials: true,
		Capabilities: []model.InputMethod{
			model.InputScreenshot, model.InputVoice, model.InputReceipt, model.InputText,
		},
		Timeout:    a.timeout,
		MaxRetries: a.maxRetries,
	}
}

func (a *Adapter) Handle(ctx context.Context, req provider.Request) (*model.StandardizedResult, error) {
	text := req.Text()

	if req.Method == model.InputVoice {
		transcript, err := a.client.TranscribeAudio(ctx, openaiapi.TranscriptionRequest{
			Audio:    req.Payload,
			Language: "zh",
		})
		if err != nil {
			return nil, provider.NewError(provider.KindRejected, Name, err)
		}
		text = transcript.Text
	}

	var content []openaiapi.ContentPart
	switch req.Method {
	case model.InputScreenshot, model.InputReceipt:
		uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Payload)
		content = []openaiapi.ContentPart{
			openaiapi.TextPart(provider.PromptFor(req.Method, "")),
			openaiapi.ImagePart(uri),
		}
	default:
		content = []openaiapi.ContentPart{
			openaiapi.TextPart(provider.TextPrompt(text)),
		}
	}

	resp, err := a.client.ChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Messages:    []openaiapi.Message{{Role: "user", Content: content}},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, provider.NewError(provider.KindRejected, Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, provider.NewError(provider.KindMalformedResponse, Name,
			eris.New("completion returned no choices"))
	}

	reply := resp.Choices[0].Message.Content
	data, err := extract.ParseLoose(reply)
	if err != nil {
		zap.L().Warn("unparsable model reply, substituting default result",
			zap.String("provider", Name),
			zap.String("method", string(req.Method)),
			zap.Error(err))
		return extract.DefaultResult(req.Method, Name, a.nowFunc()), nil
	}

	return extract.Standardize(data, req.Method, Name, a.nowFunc()), nil
}
