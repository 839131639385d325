// Package deepseek adapts the DeepSeek chat API to the provider contract.
// It is the primary backend for screenshot, receipt, and text recognition.
package deepseek

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/extract"
	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	deepseekapi "github.com/pocketledger/expense-cli/pkg/deepseek"
)

// Name is the provider identifier used in config and routing.
const Name = "deepseek"

var (
	maxTokens   = 1000
	temperature = 0.1
)

// Adapter translates recognition requests into DeepSeek chat completions.
type Adapter struct {
	client     deepseekapi.Client
	timeout    time.Duration
	maxRetries int
	nowFunc    func() time.Time
}

// New creates a DeepSeek adapter around an API client.
func New(client deepseekapi.Client, timeout time.Duration, maxRetries int) *Adapter {
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
		Capabilities:   []model.InputMethod{model.InputScreenshot, model.InputReceipt, model.InputText},
		Timeout:        a.timeout,
		MaxRetries:     a.maxRetries,
	}
}

func (a *Adapter) Handle(ctx context.Context, req provider.Request) (*model.StandardizedResult, error) {
	if !a.Descriptor().Supports(req.Method) {
		return nil, provider.NewError(provider.KindUnavailable, Name,
			eris.Errorf("input method %q not supported", req.Method))
	}

	var content []deepseekapi.ContentPart
	switch req.Method {
	case model.InputScreenshot, model.InputReceipt:
		uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(req.Payload)
		content = []deepseekapi.ContentPart{
			deepseekapi.TextPart(provider.PromptFor(req.Method, "")),
			deepseekapi.ImagePart(uri),
		}
	default:
		content = []deepseekapi.ContentPart{
			deepseekapi.TextPart(provider.TextPrompt(req.Text())),
		}
	}

	resp, err := a.client.ChatCompletion(ctx, deepseekapi.ChatCompletionRequest{
		Messages:    []deepseekapi.Message{{Role: "user", Content: content}},
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
