// Package claude adapts the Anthropic messages API to the provider contract.
package claude

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/extract"
	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	claudeapi "github.com/pocketledger/expense-cli/pkg/claude"
)

// Name is the provider identifier used in config and routing.
const Name = "claude"

var (
	maxTokens   = int64(1000)
	temperature = 0.1
)

// Adapter translates recognition requests into Anthropic message calls.
type Adapter struct {
	client     claudeapi.Client
	timeout    time.Duration
	maxRetries int
	nowFunc    func() time.Time
}

// New creates a Claude adapter around an API client.
func New(client claudeapi.Client, timeout time.Duration, maxRetries int) *Adapter {
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

	msgReq := claudeapi.MessageRequest{
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}
	switch req.Method {
	case model.InputScreenshot, model.InputReceipt:
		msgReq.Prompt = provider.PromptFor(req.Method, "")
		msgReq.Image = &claudeapi.ImageAttachment{
			MediaType:  "image/jpeg",
			Base64Data: base64.StdEncoding.EncodeToString(req.Payload),
		}
	default:
		msgReq.Prompt = provider.TextPrompt(req.Text())
	}

	resp, err := a.client.CreateMessage(ctx, msgReq)
	if err != nil {
		return nil, provider.NewError(provider.KindRejected, Name, err)
	}
	if resp.Text == "" {
		return nil, provider.NewError(provider.KindMalformedResponse, Name,
			eris.New("message returned no text content"))
	}

	data, err := extract.ParseLoose(resp.Text)
	if err != nil {
		zap.L().Warn("unparsable model reply, substituting default result",
			zap.String("provider", Name),
			zap.String("method", string(req.Method)),
			zap.Error(err))
		return extract.DefaultResult(req.Method, Name, a.nowFunc()), nil
	}

	return extract.Standardize(data, req.Method, Name, a.nowFunc()), nil
}
