// Package gemini adapts the Gemini generation API to the provider contract.
package gemini

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/extract"
	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	geminiapi "github.com/pocketledger/expense-cli/pkg/gemini"
)

// Name is the provider identifier used in config and routing.
const Name = "gemini"

// Adapter translates recognition requests into Gemini generation calls.
type Adapter struct {
	client     geminiapi.Client
	timeout    time.Duration
	maxRetries int
	nowFunc    func() time.Time
}

// New creates a Gemini adapter around an API client.
func New(client geminiapi.Client, timeout time.Duration, maxRetries int) *Adapter {
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

	genReq := geminiapi.GenerateRequest{}
	switch req.Method {
	case model.InputScreenshot, model.InputReceipt:
		genReq.Prompt = provider.PromptFor(req.Method, "")
		genReq.Image = &geminiapi.ImageAttachment{MIMEType: "image/jpeg", Data: req.Payload}
	default:
		genReq.Prompt = provider.TextPrompt(req.Text())
	}

	resp, err := a.client.GenerateContent(ctx, genReq)
	if err != nil {
		return nil, provider.NewError(provider.KindRejected, Name, err)
	}
	if resp.Text == "" {
		return nil, provider.NewError(provider.KindMalformedResponse, Name,
			eris.New("generation returned no text"))
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
