// Package tencentocr provides a client for the Tencent Cloud OCR API using
// the TC3-HMAC-SHA256 request signing scheme.
package tencentocr

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultEndpoint = "ocr.tencentcloudapi.com"
	defaultRegion   = "ap-guangzhou"

	actionGeneralBasicOCR = "GeneralBasicOCR"
	apiVersion            = "2018-11-19"
	service               = "ocr"
	algorithm             = "TC3-HMAC-SHA256"
)

// Client performs OCR recognition requests.
type Client interface {
	GeneralBasicOCR(ctx context.Context, req GeneralBasicOCRRequest) (*GeneralBasicOCRResponse, error)
}

// GeneralBasicOCRRequest is the request body for the GeneralBasicOCR action.
type GeneralBasicOCRRequest struct {
	ImageBase64  string `json:"ImageBase64"`
	LanguageType string `json:"LanguageType,omitempty"`
	Scene        string `json:"Scene,omitempty"`
}

// TextDetection is a single recognized text line.
type TextDetection struct {
	DetectedText string  `json:"DetectedText"`
	Confidence   float64 `json:"Confidence"` // 0-100
}

// GeneralBasicOCRResponse holds the recognized text lines.
type GeneralBasicOCRResponse struct {
	TextDetections []TextDetection `json:"TextDetections"`
	RequestID      string          `json:"RequestId"`
}

// FullText joins all detected lines with single spaces.
func (r *GeneralBasicOCRResponse) FullText() string {
	var buf bytes.Buffer
	for i, d := range r.TextDetections {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(d.DetectedText)
	}
	return buf.String()
}

// AverageConfidence returns the mean detection confidence scaled to 0-1.
func (r *GeneralBasicOCRResponse) AverageConfidence() float64 {
	if len(r.TextDetections) == 0 {
		return 0
	}
	var sum float64
	for _, d := range r.TextDetections {
		sum += d.Confidence
	}
	return sum / float64(len(r.TextDetections)) / 100
}

// apiEnvelope is the outer Response wrapper every Tencent Cloud API uses.
type apiEnvelope struct {
	Response struct {
		GeneralBasicOCRResponse
		Error *apiErrorDetail `json:"Error"`
	} `json:"Response"`
}

type apiErrorDetail struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// APIError is a failed OCR call: either a non-200 HTTP status or an error
// object inside a 200 envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tencentocr: api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("tencentocr: unexpected status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*httpClient)

// WithEndpoint overrides the default API host.
func WithEndpoint(endpoint string) Option {
	return func(c *httpClient) {
		c.endpoint = endpoint
	}
}

// WithRegion overrides the default region.
func WithRegion(region string) Option {
	return func(c *httpClient) {
		c.region = region
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithBaseURL overrides the full request URL, primarily for tests. The Host
// header used for signing still comes from the endpoint.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithRateLimit throttles requests to r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

type httpClient struct {
	secretID  string
	secretKey string
	endpoint  string
	region    string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	nowFunc   func() time.Time
}

// NewClient creates a Tencent Cloud OCR client. By default, requests are
// throttled to 10 req/s, the GeneralBasicOCR QPS quota.
func NewClient(secretID, secretKey string, opts ...Option) Client {
	c := &httpClient{
		secretID:  secretID,
		secretKey: secretKey,
		endpoint:  defaultEndpoint,
		region:    defaultRegion,
		limiter:   rate.NewLimiter(10, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.baseURL == "" {
		c.baseURL = "https://" + c.endpoint
	}
	return c
}

func (c *httpClient) GeneralBasicOCR(ctx context.Context, req GeneralBasicOCRRequest) (*GeneralBasicOCRResponse, error) {
	if req.LanguageType == "" {
		req.LanguageType = "zh"
	}
	if req.Scene == "" {
		req.Scene = "doc"
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "tencentocr: rate limit wait")
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "tencentocr: marshal request")
	}

	now := c.nowFunc().UTC()
	timestamp := now.Unix()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "tencentocr: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Host", c.endpoint)
	httpReq.Header.Set("X-TC-Action", actionGeneralBasicOCR)
	httpReq.Header.Set("X-TC-Version", apiVersion)
	httpReq.Header.Set("X-TC-Region", c.region)
	httpReq.Header.Set("X-TC-Timestamp", fmt.Sprintf("%d", timestamp))
	httpReq.Header.Set("Authorization", c.sign(payload, now))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "tencentocr: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "tencentocr: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, eris.Wrap(err, "tencentocr: unmarshal response")
	}
	if envelope.Response.Error != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Response.Error.Code,
			Message:    envelope.Response.Error.Message,
		}
	}

	result := envelope.Response.GeneralBasicOCRResponse
	return &result, nil
}

// sign builds a TC3-HMAC-SHA256 Authorization header for the payload.
func (c *httpClient) sign(payload []byte, now time.Time) string {
	date := now.Format("2006-01-02")

	canonicalHeaders := "content-type:application/json; charset=utf-8\nhost:" + c.endpoint + "\n"
	signedHeaders := "content-type;host"
	hashedPayload := sha256Hex(payload)

	canonicalRequest := "POST\n/\n\n" + canonicalHeaders + "\n" + signedHeaders + "\n" + hashedPayload

	credentialScope := date + "/" + service + "/tc3_request"
	stringToSign := fmt.Sprintf("%s\n%d\n%s\n%s",
		algorithm, now.Unix(), credentialScope, sha256Hex([]byte(canonicalRequest)))

	secretDate := hmacSHA256([]byte("TC3"+c.secretKey), date)
	secretService := hmacSHA256(secretDate, service)
	secretSigning := hmacSHA256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(secretSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, c.secretID, credentialScope, signedHeaders, signature)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
