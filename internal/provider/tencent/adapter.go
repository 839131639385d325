// Package tencent adapts Tencent Cloud OCR to the provider contract. Unlike
// the chat backends it gets no structured reply; expense fields are pulled
// out of the recognized text with pattern heuristics.
package tencent

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pocketledger/expense-cli/internal/extract"
	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/provider"
	"github.com/pocketledger/expense-cli/pkg/tencentocr"
)

// Name is the provider identifier used in config and routing.
const Name = "tencent"

// Adapter translates image recognition requests into Tencent OCR calls.
type Adapter struct {
	client     tencentocr.Client
	timeout    time.Duration
	maxRetries int
	nowFunc    func() time.Time
}

// New creates a Tencent OCR adapter around an API client.
func New(client tencentocr.Client, timeout time.Duration, maxRetries int) *Adapter {
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
		Capabilities:   []model.InputMethod{model.InputScreenshot, model.InputReceipt},
		Timeout:        a.timeout,
		MaxRetries:     a.maxRetries,
	}
}

func (a *Adapter) Handle(ctx context.Context, req provider.Request) (*model.StandardizedResult, error) {
	if !a.Descriptor().Supports(req.Method) {
		return nil, provider.NewError(provider.KindUnavailable, Name,
			eris.Errorf("input method %q not supported", req.Method))
	}

	resp, err := a.client.GeneralBasicOCR(ctx, tencentocr.GeneralBasicOCRRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(req.Payload),
	})
	if err != nil {
		return nil, provider.NewError(provider.KindRejected, Name, err)
	}
	if len(resp.TextDetections) == 0 {
		return nil, provider.NewError(provider.KindMalformedResponse, Name,
			eris.New("ocr returned no text detections"))
	}

	now := a.nowFunc()
	text := extract.NormalizeOCRText(resp.FullText())

	data := map[string]any{
		"amount":      extract.AmountFromText(text),
		"merchant":    extract.MerchantFromText(text),
		"description": text,
		"confidence":  resp.AverageConfidence(),
	}
	if ts := extract.TimestampFromText(text, now); ts != "" {
		data["timestamp"] = ts
	}

	return extract.Standardize(data, req.Method, Name, now), nil
}
