package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/normalize"
	"github.com/pocketledger/expense-cli/internal/pipeline"
	"github.com/pocketledger/expense-cli/internal/provider"
	"github.com/pocketledger/expense-cli/internal/router"
)

type testProvider struct {
	fail bool
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) Descriptor() model.ProviderDescriptor {
	return model.ProviderDescriptor{
		Name:           "test",
		HasCredentials: true,
		Capabilities:   []model.InputMethod{model.InputText},
		Timeout:        time.Second,
	}
}

func (p *testProvider) Handle(ctx context.Context, req provider.Request) (*model.StandardizedResult, error) {
	if p.fail {
		return nil, provider.NewError(provider.KindRejected, "test", eris.New("backend down"))
	}
	return &model.StandardizedResult{
		Amount:      42,
		Merchant:    "Test Shop",
		Category:    "Shopping",
		Confidence:  0.9,
		InputMethod: req.Method,
		Provider:    "test",
	}, nil
}

func newTestMux(t *testing.T, p provider.Provider) *http.ServeMux {
	t.Helper()
	registry := provider.NewRegistry()
	registry.Register(p)
	r := router.New(registry, router.Config{InitialBackoff: time.Millisecond})
	processor := pipeline.New(r, normalize.New())
	return newServeMux(processor, nil)
}

func TestServeMux_Health(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeMux_Process(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	body, _ := json.Marshal(captureRequest{Method: "text", Text: "42 at Test Shop"})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var record model.TransactionRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &record))
	assert.Equal(t, 42.0, record.Amount)
	assert.Equal(t, "Test Shop", record.Merchant)
	assert.Equal(t, "Shopping", record.Category)
}

func TestServeMux_ProcessInvalidBody(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestServeMux_ProcessInvalidMethod(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	body, _ := json.Marshal(captureRequest{Method: "telepathy", Text: "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid method")
}

func TestServeMux_ProcessEmptyPayload(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	body, _ := json.Marshal(captureRequest{Method: "text"})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "either text or payload is required")
}

func TestServeMux_ProcessProviderFailure(t *testing.T) {
	mux := newTestMux(t, &testProvider{fail: true})

	body, _ := json.Marshal(captureRequest{Method: "text", Text: "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "expense recognition failed")
}

func TestServeMux_ProcessNoCapableProvider(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	// The test provider only supports text input.
	body, _ := json.Marshal(captureRequest{Method: "voice", Payload: []byte{0x01}})
	req := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServeMux_Batch(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	body, _ := json.Marshal([]captureRequest{
		{Method: "text", Text: "a"},
		{Method: "text", Text: "b"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/batch", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Submitted int                       `json:"submitted"`
		Succeeded int                       `json:"succeeded"`
		Records   []model.TransactionRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Submitted)
	assert.Equal(t, 2, resp.Succeeded)
	require.Len(t, resp.Records, 2)
}

func TestServeMux_BatchInvalidEntry(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	body, _ := json.Marshal([]captureRequest{
		{Method: "text", Text: "a"},
		{Method: "bogus", Text: "b"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/batch", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "entry 1")
}

func TestServeMux_RecordsWithoutStore(t *testing.T) {
	mux := newTestMux(t, &testProvider{})

	req := httptest.NewRequest(http.MethodGet, "/v1/records", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "no store configured")
}

func TestRunServerDrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.Write([]byte("done"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- runServer(ctx, &http.Server{Handler: mux}, ln, 5*time.Second)
	}()

	type clientResult struct {
		body string
		err  error
	}
	clientCh := make(chan clientResult, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			clientCh <- clientResult{err: err}
			return
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		clientCh <- clientResult{body: string(body), err: err}
	}()

	// Trigger shutdown while the request is in flight, then let the
	// handler finish. The drain must wait for it.
	<-started
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	res := <-clientCh
	require.NoError(t, res.err)
	assert.Equal(t, "done", res.body)

	require.NoError(t, <-serveErr)
}
