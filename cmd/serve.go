package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pocketledger/expense-cli/internal/model"
	"github.com/pocketledger/expense-cli/internal/pipeline"
	"github.com/pocketledger/expense-cli/internal/provider"
	"github.com/pocketledger/expense-cli/internal/store"
)

var servePort int

// captureRequest is the JSON body for process and batch endpoints. Payload
// carries base64-encoded bytes for binary input methods; Text is a
// convenience for the text method.
type captureRequest struct {
	Method  string `json:"method"`
	Text    string `json:"text,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

func (r captureRequest) item() (pipeline.BatchItem, error) {
	method := model.InputMethod(r.Method)
	if !method.Valid() {
		return pipeline.BatchItem{}, eris.Errorf("invalid method %q", r.Method)
	}
	payload := r.Payload
	if len(payload) == 0 {
		payload = []byte(r.Text)
	}
	if len(payload) == 0 {
		return pipeline.BatchItem{}, eris.New("either text or payload is required")
	}
	return pipeline.BatchItem{Method: method, Payload: payload}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// processStatus maps a pipeline failure to an HTTP status.
func processStatus(err error) int {
	switch provider.KindOf(err) {
	case provider.KindUnavailable:
		return http.StatusServiceUnavailable
	case provider.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func newServeMux(processor *pipeline.Processor, st store.Store) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /v1/process", func(w http.ResponseWriter, r *http.Request) {
		var req captureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		item, err := req.item()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		record, err := processor.Process(r.Context(), item.Method, item.Payload)
		if err != nil {
			writeError(w, processStatus(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	mux.HandleFunc("POST /v1/batch", func(w http.ResponseWriter, r *http.Request) {
		var reqs []captureRequest
		if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		items := make([]pipeline.BatchItem, 0, len(reqs))
		for i, req := range reqs {
			item, err := req.item()
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("entry %d: %s", i, err.Error()))
				return
			}
			items = append(items, item)
		}

		records := processor.Batch(r.Context(), items)
		writeJSON(w, http.StatusOK, map[string]any{
			"submitted": len(items),
			"succeeded": len(records),
			"records":   records,
		})
	})

	mux.HandleFunc("GET /v1/records", func(w http.ResponseWriter, r *http.Request) {
		if st == nil {
			writeError(w, http.StatusServiceUnavailable, "no store configured")
			return
		}

		q := r.URL.Query()
		filter := store.ListFilter{
			Category:      q.Get("category"),
			InputMethod:   model.InputMethod(q.Get("method")),
			SyncStatus:    model.SyncStatus(q.Get("sync_status")),
			OnlyAnomalies: q.Get("anomalies") == "true",
		}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}
		if s := q.Get("offset"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid offset")
				return
			}
			filter.Offset = n
		}

		records, err := st.ListRecords(r.Context(), filter)
		if err != nil {
			zap.L().Error("list records failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list records failed")
			return
		}
		if records == nil {
			records = []model.TransactionRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	return mux
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for expense capture",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			return eris.Wrapf(err, "server listen on port %d", port)
		}

		srv := &http.Server{
			Handler: newServeMux(env.Processor, env.Store),
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return runServer(ctx, srv, ln, 10*time.Second)
	},
}

// runServer serves until ctx is cancelled, then drains in-flight connections.
// The caller's ctx is already done when shutdown starts, so the drain runs on
// its own deadline.
func runServer(ctx context.Context, srv *http.Server, ln net.Listener, drainTimeout time.Duration) error {
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server serve")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
